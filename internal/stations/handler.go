package stations

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/PettaPuang/nozzle.website-sub003/internal/platform/httpx"
	"github.com/PettaPuang/nozzle.website-sub003/internal/shared"
)

// Handler exposes station master data endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
	}
}

// MountRoutes registers station routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/stations", h.listStations)
	r.Post("/stations", h.createStation)
	r.Get("/stations/{stationID}", h.showStation)
	r.Get("/stations/{stationID}/products", h.listProducts)
	r.Post("/stations/{stationID}/products", h.createProduct)
	r.Post("/products/{productID}/purchase-price", h.updatePurchasePrice)
	r.Get("/stations/{stationID}/tanks", h.listTanks)
	r.Post("/stations/{stationID}/tanks", h.createTank)
	r.Post("/stations/{stationID}/pump-stations", h.createPumpStation)
	r.Post("/pump-stations/{pumpStationID}/nozzles", h.createNozzle)
	r.Post("/tanks/{tankID}/initial-stock", h.updateInitialStock)
	r.Delete("/tanks/{tankID}", h.deleteTank)
}

func (h *Handler) listStations(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	user, err := shared.RequireRoles(sess, shared.RoleAdministrator, shared.RoleDeveloper,
		shared.RoleManager, shared.RoleFinance, shared.RoleOwner, shared.RoleOwnerGroup)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	stations, err := h.service.ListStations(r.Context())
	if err != nil {
		h.respondErr(w, err)
		return
	}
	visible := stations[:0:0]
	for _, st := range stations {
		if user.CanAccessStation(st.ID) {
			visible = append(visible, st)
		}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"stations": visible})
}

func (h *Handler) showStation(w http.ResponseWriter, r *http.Request) {
	stationID, err := uuid.Parse(chi.URLParam(r, "stationID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid station id")
		return
	}
	sess := shared.SessionFromContext(r.Context())
	if _, err := shared.RequireStationRoles(sess, stationID,
		shared.RoleAdministrator, shared.RoleDeveloper, shared.RoleManager,
		shared.RoleFinance, shared.RoleOperator, shared.RoleUnloader,
		shared.RoleOwner, shared.RoleOwnerGroup); err != nil {
		h.respondErr(w, err)
		return
	}
	station, err := h.service.GetStation(r.Context(), stationID)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, station)
}

type createStationRequest struct {
	Name        string `json:"name" validate:"required"`
	Address     string `json:"address"`
	OpenMinute  int    `json:"openMinute" validate:"min=0,max=1439"`
	CloseMinute int    `json:"closeMinute" validate:"min=0,max=1439"`
}

func (h *Handler) createStation(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if _, err := shared.RequireRoles(sess, shared.RoleAdministrator, shared.RoleDeveloper); err != nil {
		h.respondErr(w, err)
		return
	}
	var req createStationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	station, err := h.service.CreateStation(r.Context(), CreateStationInput{
		Name:        req.Name,
		Address:     req.Address,
		OpenMinute:  req.OpenMinute,
		CloseMinute: req.CloseMinute,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, station)
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	stationID, err := uuid.Parse(chi.URLParam(r, "stationID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid station id")
		return
	}
	sess := shared.SessionFromContext(r.Context())
	if _, err := shared.RequireStationRoles(sess, stationID,
		shared.RoleAdministrator, shared.RoleDeveloper, shared.RoleManager,
		shared.RoleFinance, shared.RoleOperator, shared.RoleUnloader,
		shared.RoleOwner, shared.RoleOwnerGroup); err != nil {
		h.respondErr(w, err)
		return
	}
	products, err := h.service.ListProducts(r.Context(), stationID)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"products": products})
}

type createProductRequest struct {
	Name          string `json:"name" validate:"required"`
	PurchasePrice int64  `json:"purchasePrice" validate:"gt=0"`
	SalePrice     int64  `json:"salePrice" validate:"gt=0"`
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	stationID, err := uuid.Parse(chi.URLParam(r, "stationID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid station id")
		return
	}
	sess := shared.SessionFromContext(r.Context())
	if _, err := shared.RequireStationRoles(sess, stationID,
		shared.RoleAdministrator, shared.RoleDeveloper); err != nil {
		h.respondErr(w, err)
		return
	}
	var req createProductRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	product, err := h.service.CreateProduct(r.Context(), CreateProductInput{
		GasStationID:  stationID,
		Name:          req.Name,
		PurchasePrice: req.PurchasePrice,
		SalePrice:     req.SalePrice,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, product)
}

type updatePriceRequest struct {
	PurchasePrice int64 `json:"purchasePrice" validate:"gt=0"`
}

func (h *Handler) updatePurchasePrice(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id")
		return
	}
	sess := shared.SessionFromContext(r.Context())
	user, err := shared.RequireRoles(sess, shared.RoleAdministrator, shared.RoleDeveloper)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	var req updatePriceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.UpdatePurchasePrice(r.Context(), productID, req.PurchasePrice, user.ID); err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"updated": true})
}

func (h *Handler) listTanks(w http.ResponseWriter, r *http.Request) {
	stationID, err := uuid.Parse(chi.URLParam(r, "stationID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid station id")
		return
	}
	sess := shared.SessionFromContext(r.Context())
	if _, err := shared.RequireStationRoles(sess, stationID,
		shared.RoleAdministrator, shared.RoleDeveloper, shared.RoleManager,
		shared.RoleFinance, shared.RoleOperator, shared.RoleUnloader,
		shared.RoleOwner, shared.RoleOwnerGroup); err != nil {
		h.respondErr(w, err)
		return
	}
	tanks, err := h.service.ListTanks(r.Context(), stationID)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"tanks": tanks})
}

type createTankRequest struct {
	ProductID    string `json:"productId" validate:"required,uuid"`
	Name         string `json:"name" validate:"required"`
	Capacity     int64  `json:"capacity" validate:"gt=0"`
	InitialStock int64  `json:"initialStock" validate:"min=0"`
}

func (h *Handler) createTank(w http.ResponseWriter, r *http.Request) {
	stationID, err := uuid.Parse(chi.URLParam(r, "stationID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid station id")
		return
	}
	sess := shared.SessionFromContext(r.Context())
	user, err := shared.RequireStationRoles(sess, stationID,
		shared.RoleAdministrator, shared.RoleDeveloper)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	var req createTankRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	productID, _ := uuid.Parse(req.ProductID)
	tank, err := h.service.CreateTank(r.Context(), CreateTankInput{
		GasStationID: stationID,
		ProductID:    productID,
		Name:         req.Name,
		Capacity:     req.Capacity,
		InitialStock: req.InitialStock,
		ActorID:      user.ID,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, tank)
}

type createPumpStationRequest struct {
	Name string `json:"name" validate:"required"`
}

func (h *Handler) createPumpStation(w http.ResponseWriter, r *http.Request) {
	stationID, err := uuid.Parse(chi.URLParam(r, "stationID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid station id")
		return
	}
	sess := shared.SessionFromContext(r.Context())
	user, err := shared.RequireStationRoles(sess, stationID,
		shared.RoleAdministrator, shared.RoleDeveloper)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	var req createPumpStationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	pump, err := h.service.CreatePumpStation(r.Context(), stationID, req.Name, user.ID)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, pump)
}

type createNozzleRequest struct {
	TankID string `json:"tankId" validate:"required,uuid"`
	Name   string `json:"name" validate:"required"`
}

func (h *Handler) createNozzle(w http.ResponseWriter, r *http.Request) {
	pumpStationID, err := uuid.Parse(chi.URLParam(r, "pumpStationID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid pump station id")
		return
	}
	pump, err := h.service.GetPumpStation(r.Context(), pumpStationID)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	user, err := shared.RequireStationRoles(sess, pump.GasStationID,
		shared.RoleAdministrator, shared.RoleDeveloper)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	var req createNozzleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	tankID, _ := uuid.Parse(req.TankID)
	nozzle, err := h.service.CreateNozzle(r.Context(), CreateNozzleInput{
		PumpStationID: pumpStationID,
		TankID:        tankID,
		Name:          req.Name,
		ActorID:       user.ID,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, nozzle)
}

type initialStockRequest struct {
	Liters int64 `json:"liters" validate:"min=0"`
}

func (h *Handler) updateInitialStock(w http.ResponseWriter, r *http.Request) {
	tankID, err := uuid.Parse(chi.URLParam(r, "tankID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid tank id")
		return
	}
	sess := shared.SessionFromContext(r.Context())
	user, err := shared.RequireRoles(sess, shared.RoleAdministrator, shared.RoleDeveloper)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	var req initialStockRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.service.UpdateInitialStock(r.Context(), tankID, req.Liters, user.ID); err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"updated": true})
}

func (h *Handler) deleteTank(w http.ResponseWriter, r *http.Request) {
	tankID, err := uuid.Parse(chi.URLParam(r, "tankID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid tank id")
		return
	}
	sess := shared.SessionFromContext(r.Context())
	user, err := shared.RequireRoles(sess, shared.RoleAdministrator, shared.RoleDeveloper)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	if err := h.service.DeleteTank(r.Context(), tankID, user.ID); err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrUnauthenticated):
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "login required")
	case errors.Is(err, shared.ErrForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "insufficient role")
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrTankHasActivity):
		httpx.ProblemKind(w, http.StatusConflict, "Conflict", err.Error(), "TANK_HAS_ACTIVITY", "")
	case errors.Is(err, ErrInvalidHours), errors.Is(err, ErrCrossStation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrRelatedDataExists):
		httpx.ProblemKind(w, http.StatusConflict, "Conflict", err.Error(), "RELATED_DATA_EXISTS", "")
	default:
		h.logger.Error("stations handler", slog.String("error", err.Error()))
		httpx.RespondError(w, err)
	}
}
