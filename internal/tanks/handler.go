package tanks

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/PettaPuang/nozzle.website-sub003/internal/platform/httpx"
	"github.com/PettaPuang/nozzle.website-sub003/internal/purchases"
	"github.com/PettaPuang/nozzle.website-sub003/internal/shared"
	"github.com/PettaPuang/nozzle.website-sub003/internal/stations"
)

// Handler exposes tank reading and unload endpoints.
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

// MountRoutes registers tank routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/tanks/{tankID}/stock", h.tankStock)
	r.Get("/tanks/{tankID}/readings", h.listReadings)
	r.Post("/tanks/{tankID}/readings", h.createReading)
	r.Post("/readings/{readingID}/approve", h.approveReading)
	r.Post("/readings/{readingID}/reject", h.rejectReading)
	r.Get("/tanks/{tankID}/unloads", h.listUnloads)
	r.Post("/tanks/{tankID}/unloads", h.createUnload)
	r.Post("/unloads/{unloadID}/approve", h.approveUnload)
	r.Post("/unloads/{unloadID}/reject", h.rejectUnload)
}

func (h *Handler) tankStock(w http.ResponseWriter, r *http.Request) {
	tankID, _, ok := h.tankAccess(w, r,
		shared.RoleAdministrator, shared.RoleDeveloper, shared.RoleManager,
		shared.RoleFinance, shared.RoleOperator, shared.RoleUnloader,
		shared.RoleOwner, shared.RoleOwnerGroup)
	if !ok {
		return
	}
	opening, realtime, err := h.service.TankStock(r.Context(), tankID)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"openingLiters":  opening,
		"realtimeLiters": realtime,
	})
}

func (h *Handler) listReadings(w http.ResponseWriter, r *http.Request) {
	tankID, _, ok := h.tankAccess(w, r,
		shared.RoleAdministrator, shared.RoleDeveloper, shared.RoleManager,
		shared.RoleFinance, shared.RoleUnloader, shared.RoleOwner, shared.RoleOwnerGroup)
	if !ok {
		return
	}
	page := shared.ParsePageParams(r.URL.Query())
	readings, err := h.service.ListReadings(r.Context(), tankID, page.Limit, page.Offset)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"readings": readings})
}

type createReadingRequest struct {
	LiterValue int64    `json:"literValue" validate:"min=0"`
	TakenAt    string   `json:"takenAt"`
	PhotoURLs  []string `json:"photoUrls"`
}

func (h *Handler) createReading(w http.ResponseWriter, r *http.Request) {
	tankID, user, ok := h.tankAccess(w, r,
		shared.RoleAdministrator, shared.RoleDeveloper, shared.RoleUnloader)
	if !ok {
		return
	}
	var req createReadingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	var takenAt time.Time
	if req.TakenAt != "" {
		var err error
		takenAt, err = time.Parse(time.RFC3339, req.TakenAt)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid takenAt, want RFC3339")
			return
		}
	}
	reading, err := h.service.CreateReading(r.Context(), CreateReadingInput{
		TankID:     tankID,
		LiterValue: req.LiterValue,
		TakenAt:    takenAt,
		PhotoURLs:  req.PhotoURLs,
		Actor:      user,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, reading)
}

func (h *Handler) approveReading(w http.ResponseWriter, r *http.Request) {
	readingID, user, ok := h.decisionAccess(w, r, "readingID")
	if !ok {
		return
	}
	reading, err := h.service.ApproveReading(r.Context(), readingID, user)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, reading)
}

type rejectRequest struct {
	Note string `json:"note"`
}

func (h *Handler) rejectReading(w http.ResponseWriter, r *http.Request) {
	readingID, user, ok := h.decisionAccess(w, r, "readingID")
	if !ok {
		return
	}
	var req rejectRequest
	_ = httpx.DecodeJSON(r, &req)
	reading, err := h.service.RejectReading(r.Context(), readingID, user, req.Note)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, reading)
}

func (h *Handler) listUnloads(w http.ResponseWriter, r *http.Request) {
	tankID, _, ok := h.tankAccess(w, r,
		shared.RoleAdministrator, shared.RoleDeveloper, shared.RoleManager,
		shared.RoleFinance, shared.RoleUnloader, shared.RoleOwner, shared.RoleOwnerGroup)
	if !ok {
		return
	}
	page := shared.ParsePageParams(r.URL.Query())
	unloads, err := h.service.ListUnloads(r.Context(), tankID, page.Limit, page.Offset)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"unloads": unloads})
}

type createUnloadRequest struct {
	DeliveredVolume int64    `json:"deliveredVolume" validate:"gt=0"`
	LiterAmount     int64    `json:"literAmount" validate:"gt=0"`
	UnloadedAt      string   `json:"unloadedAt"`
	PhotoURLs       []string `json:"photoUrls"`
}

func (h *Handler) createUnload(w http.ResponseWriter, r *http.Request) {
	tankID, user, ok := h.tankAccess(w, r,
		shared.RoleAdministrator, shared.RoleDeveloper, shared.RoleUnloader)
	if !ok {
		return
	}
	var req createUnloadRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	var unloadedAt time.Time
	if req.UnloadedAt != "" {
		var err error
		unloadedAt, err = time.Parse(time.RFC3339, req.UnloadedAt)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid unloadedAt, want RFC3339")
			return
		}
	}
	unload, err := h.service.CreateUnload(r.Context(), CreateUnloadInput{
		TankID:          tankID,
		DeliveredVolume: req.DeliveredVolume,
		LiterAmount:     req.LiterAmount,
		UnloadedAt:      unloadedAt,
		PhotoURLs:       req.PhotoURLs,
		Actor:           user,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, unload)
}

func (h *Handler) approveUnload(w http.ResponseWriter, r *http.Request) {
	unloadID, user, ok := h.decisionAccess(w, r, "unloadID")
	if !ok {
		return
	}
	unload, err := h.service.ApproveUnload(r.Context(), unloadID, user)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, unload)
}

func (h *Handler) rejectUnload(w http.ResponseWriter, r *http.Request) {
	unloadID, user, ok := h.decisionAccess(w, r, "unloadID")
	if !ok {
		return
	}
	var req rejectRequest
	_ = httpx.DecodeJSON(r, &req)
	unload, err := h.service.RejectUnload(r.Context(), unloadID, user, req.Note)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, unload)
}

// tankAccess parses the tank path param and checks the session role. The
// station scope check happens in the service once the tank row names its
// station.
func (h *Handler) tankAccess(w http.ResponseWriter, r *http.Request, roles ...shared.Role) (uuid.UUID, shared.AuthUser, bool) {
	tankID, err := uuid.Parse(chi.URLParam(r, "tankID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid tank id")
		return uuid.Nil, shared.AuthUser{}, false
	}
	sess := shared.SessionFromContext(r.Context())
	user, err := shared.RequireRoles(sess, roles...)
	if err != nil {
		h.respondErr(w, err)
		return uuid.Nil, shared.AuthUser{}, false
	}
	return tankID, user, true
}

func (h *Handler) decisionAccess(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, shared.AuthUser, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return uuid.Nil, shared.AuthUser{}, false
	}
	sess := shared.SessionFromContext(r.Context())
	user, err := shared.RequireRoles(sess,
		shared.RoleAdministrator, shared.RoleDeveloper, shared.RoleManager, shared.RoleOwner)
	if err != nil {
		h.respondErr(w, err)
		return uuid.Nil, shared.AuthUser{}, false
	}
	return id, user, true
}

func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	var capErr *CapacityExceededError
	switch {
	case errors.As(err, &capErr):
		httpx.RespondError(w, err)
	case errors.Is(err, shared.ErrUnauthenticated):
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "login required")
	case errors.Is(err, shared.ErrForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "insufficient role")
	case errors.Is(err, ErrNotFound), errors.Is(err, stations.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrReadingExists):
		httpx.ProblemKind(w, http.StatusConflict, "Conflict", err.Error(), "READING_EXISTS", "")
	case errors.Is(err, ErrAlreadyProcessed):
		httpx.ProblemKind(w, http.StatusConflict, "Conflict", err.Error(), "ALREADY_PROCESSED", "")
	case errors.Is(err, ErrDeliveredExceeded):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, purchases.ErrInsufficientLO):
		httpx.ProblemKind(w, http.StatusConflict, "Conflict", err.Error(), "INSUFFICIENT_LO", "")
	default:
		h.logger.Error("tanks handler", slog.String("error", err.Error()))
		httpx.RespondError(w, err)
	}
}
