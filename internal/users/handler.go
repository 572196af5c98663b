package users

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

// Handler exposes user management endpoints.
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

// MountRoutes registers user management routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/users", h.listUsers)
	r.Post("/users", h.createUser)
	r.Get("/users/{id}", h.getUser)
	r.Post("/users/{id}/activate", h.setActive(true))
	r.Post("/users/{id}/deactivate", h.setActive(false))
	r.Post("/users/{id}/password", h.changePassword)
	r.Put("/users/{id}/stations", h.assignStations)
}

type userResponse struct {
	ID         uuid.UUID   `json:"id"`
	Username   string      `json:"username"`
	Name       string      `json:"name"`
	Role       shared.Role `json:"role"`
	IsActive   bool        `json:"isActive"`
	StationIDs []uuid.UUID `json:"stationIds"`
}

func toResponse(u User) userResponse {
	return userResponse{
		ID:         u.ID,
		Username:   u.Username,
		Name:       u.Name,
		Role:       u.Role,
		IsActive:   u.IsActive,
		StationIDs: u.StationIDs,
	}
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	if _, err := h.adminAccess(r); err != nil {
		h.respondErr(w, err)
		return
	}
	list, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.respondErr(w, err)
		return
	}
	out := make([]userResponse, 0, len(list))
	for _, u := range list {
		out = append(out, toResponse(u))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": out})
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	if _, err := h.adminAccess(r); err != nil {
		h.respondErr(w, err)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
		return
	}
	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(user))
}

type createUserRequest struct {
	Username   string   `json:"username" validate:"required,min=3"`
	Name       string   `json:"name" validate:"required"`
	Password   string   `json:"password" validate:"required,min=8"`
	Role       string   `json:"role" validate:"required"`
	StationIDs []string `json:"stationIds" validate:"dive,uuid"`
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	actor, err := h.adminAccess(r)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	var req createUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	stationIDs := make([]uuid.UUID, 0, len(req.StationIDs))
	for _, raw := range req.StationIDs {
		id, _ := uuid.Parse(raw)
		stationIDs = append(stationIDs, id)
	}
	user, err := h.service.CreateUser(r.Context(), CreateUserInput{
		Username:   req.Username,
		Name:       req.Name,
		Password:   req.Password,
		Role:       shared.Role(req.Role),
		StationIDs: stationIDs,
		Actor:      actor,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(user))
}

func (h *Handler) setActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := h.adminAccess(r)
		if err != nil {
			h.respondErr(w, err)
			return
		}
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
			return
		}
		if err := h.service.SetActive(r.Context(), id, active, actor); err != nil {
			h.respondErr(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"id": id, "isActive": active})
	}
}

type changePasswordRequest struct {
	Password string `json:"password" validate:"required,min=8"`
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	actor, err := h.adminAccess(r)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
		return
	}
	var req changePasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.ChangePassword(r.Context(), id, req.Password, actor); err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"id": id})
}

type assignStationsRequest struct {
	StationIDs []string `json:"stationIds" validate:"dive,uuid"`
}

func (h *Handler) assignStations(w http.ResponseWriter, r *http.Request) {
	actor, err := h.adminAccess(r)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
		return
	}
	var req assignStationsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	stationIDs := make([]uuid.UUID, 0, len(req.StationIDs))
	for _, raw := range req.StationIDs {
		sid, _ := uuid.Parse(raw)
		stationIDs = append(stationIDs, sid)
	}
	if err := h.service.AssignStations(r.Context(), id, stationIDs, actor); err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"id": id, "stationIds": stationIDs})
}

func (h *Handler) adminAccess(r *http.Request) (shared.AuthUser, error) {
	sess := shared.SessionFromContext(r.Context())
	return shared.RequireRoles(sess, shared.RoleAdministrator, shared.RoleDeveloper, shared.RoleOwner)
}

func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrUnauthenticated):
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "login required")
	case errors.Is(err, shared.ErrForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "insufficient role")
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrUsernameTaken):
		httpx.ProblemKind(w, http.StatusConflict, "Conflict", err.Error(), "USERNAME_TAKEN", "")
	case errors.Is(err, ErrUnknownRole):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("users handler", slog.String("error", err.Error()))
		httpx.RespondError(w, err)
	}
}
