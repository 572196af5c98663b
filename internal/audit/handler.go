package audit

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/PettaPuang/nozzle.website-sub003/internal/platform/httpx"
	"github.com/PettaPuang/nozzle.website-sub003/internal/shared"
)

// Handler exposes the audit trail listing.
type Handler struct {
	logger *slog.Logger
	repo   Repository
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, repo Repository) *Handler {
	return &Handler{logger: logger, repo: repo}
}

// MountRoutes registers audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/audit-logs", h.list)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if _, err := shared.RequireRoles(sess,
		shared.RoleAdministrator, shared.RoleDeveloper, shared.RoleOwner, shared.RoleOwnerGroup); err != nil {
		switch {
		case errors.Is(err, shared.ErrUnauthenticated):
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "login required")
		default:
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "insufficient role")
		}
		return
	}
	q := r.URL.Query()
	page := shared.ParsePageParams(q)
	entries, err := h.repo.List(r.Context(), Filter{
		Entity:   q.Get("entity"),
		EntityID: q.Get("entityId"),
		Action:   q.Get("action"),
		Limit:    page.Limit,
		Offset:   page.Offset,
	})
	if err != nil {
		h.logger.Error("list audit logs", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries})
}
