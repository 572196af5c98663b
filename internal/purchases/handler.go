package purchases

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/PettaPuang/nozzle.website-sub003/internal/platform/httpx"
	"github.com/PettaPuang/nozzle.website-sub003/internal/shared"
	"github.com/PettaPuang/nozzle.website-sub003/internal/stations"
)

// Handler exposes purchase and LO tracking endpoints.
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

// MountRoutes registers purchase routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/stations/{stationID}/purchases", h.createPurchase)
	r.Get("/stations/{stationID}/products/{productID}/purchases", h.listPurchases)
	r.Get("/stations/{stationID}/products/{productID}/lo-remaining", h.remainingLO)
}

type createPurchaseRequest struct {
	ProductID       string   `json:"productId" validate:"required,uuid"`
	VolumeLiters    int64    `json:"volumeLiters" validate:"gt=0"`
	PaymentMethod   string   `json:"paymentMethod"`
	Date            string   `json:"date"`
	ReferenceNumber string   `json:"referenceNumber"`
	Notes           string   `json:"notes"`
	PhotoURLs       []string `json:"photoUrls"`
}

func (h *Handler) createPurchase(w http.ResponseWriter, r *http.Request) {
	stationID, err := uuid.Parse(chi.URLParam(r, "stationID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid station id")
		return
	}
	sess := shared.SessionFromContext(r.Context())
	user, err := shared.RequireStationRoles(sess, stationID,
		shared.RoleAdministrator, shared.RoleDeveloper, shared.RoleManager,
		shared.RoleFinance, shared.RoleOwner)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	var req createPurchaseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	productID, _ := uuid.Parse(req.ProductID)
	var date time.Time
	if req.Date != "" {
		date, err = time.Parse("2006-01-02", req.Date)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid date, want YYYY-MM-DD")
			return
		}
	}
	tx, err := h.service.CreatePurchase(r.Context(), CreatePurchaseInput{
		GasStationID:    stationID,
		ProductID:       productID,
		VolumeLiters:    req.VolumeLiters,
		PaymentMethod:   req.PaymentMethod,
		Date:            date,
		ReferenceNumber: req.ReferenceNumber,
		Notes:           req.Notes,
		PhotoURLs:       req.PhotoURLs,
		Actor:           user,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, tx)
}

func (h *Handler) listPurchases(w http.ResponseWriter, r *http.Request) {
	stationID, err := uuid.Parse(chi.URLParam(r, "stationID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid station id")
		return
	}
	productID, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id")
		return
	}
	sess := shared.SessionFromContext(r.Context())
	if _, err := shared.RequireStationRoles(sess, stationID,
		shared.RoleAdministrator, shared.RoleDeveloper, shared.RoleManager,
		shared.RoleFinance, shared.RoleUnloader, shared.RoleOwner, shared.RoleOwnerGroup); err != nil {
		h.respondErr(w, err)
		return
	}
	page := shared.ParsePageParams(r.URL.Query())
	txs, err := h.service.ListPurchases(r.Context(), stationID, productID, page.Limit, page.Offset)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"purchases": txs})
}

func (h *Handler) remainingLO(w http.ResponseWriter, r *http.Request) {
	stationID, err := uuid.Parse(chi.URLParam(r, "stationID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid station id")
		return
	}
	productID, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id")
		return
	}
	sess := shared.SessionFromContext(r.Context())
	if _, err := shared.RequireStationRoles(sess, stationID,
		shared.RoleAdministrator, shared.RoleDeveloper, shared.RoleManager,
		shared.RoleFinance, shared.RoleUnloader, shared.RoleOwner, shared.RoleOwnerGroup); err != nil {
		h.respondErr(w, err)
		return
	}
	remaining, err := h.service.RemainingLO(r.Context(), stationID, productID)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	outstanding, err := h.service.ListOutstanding(r.Context(), stationID, productID)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"remainingLiters": remaining,
		"outstanding":     outstanding,
	})
}

func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrUnauthenticated):
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "login required")
	case errors.Is(err, shared.ErrForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "insufficient role")
	case errors.Is(err, ErrNotFound), errors.Is(err, stations.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInsufficientLO):
		httpx.ProblemKind(w, http.StatusConflict, "Conflict", err.Error(), "INSUFFICIENT_LO", "")
	default:
		h.logger.Error("purchases handler", slog.String("error", err.Error()))
		httpx.RespondError(w, err)
	}
}
