package ledger

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/PettaPuang/nozzle.website-sub003/internal/platform/httpx"
	"github.com/PettaPuang/nozzle.website-sub003/internal/shared"
)

// Handler exposes journal browsing, the transaction approval workflow and
// reversal corrections.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/stations/{stationID}/transactions", h.listTransactions)
	r.Get("/transactions/{id}", h.getTransaction)
	r.Post("/transactions/{id}/approve", h.approve)
	r.Post("/transactions/{id}/reject", h.reject)
	r.Post("/transactions/{id}/reverse", h.reverse)
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	stationID, err := uuid.Parse(chi.URLParam(r, "stationID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid station id")
		return
	}
	sess := shared.SessionFromContext(r.Context())
	if _, err := shared.RequireStationRoles(sess, stationID,
		shared.RoleAdministrator, shared.RoleDeveloper, shared.RoleManager,
		shared.RoleFinance, shared.RoleOwner, shared.RoleOwnerGroup); err != nil {
		h.respondErr(w, err)
		return
	}
	page := shared.ParsePageParams(r.URL.Query())
	txs, err := h.service.ListByStation(r.Context(), stationID, page.Limit, page.Offset)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"transactions": txs})
}

func (h *Handler) getTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid transaction id")
		return
	}
	tx, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	if _, err := shared.RequireStationRoles(sess, tx.GasStationID,
		shared.RoleAdministrator, shared.RoleDeveloper, shared.RoleManager,
		shared.RoleFinance, shared.RoleOwner, shared.RoleOwnerGroup); err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tx)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.service.Approve)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.service.Reject)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, fn func(context.Context, uuid.UUID, uuid.UUID) (Transaction, error)) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid transaction id")
		return
	}
	tx, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	user, err := shared.RequireStationRoles(sess, tx.GasStationID,
		shared.RoleAdministrator, shared.RoleDeveloper, shared.RoleManager,
		shared.RoleOwner)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	decided, err := fn(r.Context(), id, user.ID)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, decided)
}

type reverseRequest struct {
	Memo string `json:"memo"`
}

func (h *Handler) reverse(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid transaction id")
		return
	}
	tx, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	user, err := shared.RequireStationRoles(sess, tx.GasStationID,
		shared.RoleAdministrator, shared.RoleDeveloper, shared.RoleManager,
		shared.RoleOwner)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	var req reverseRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
			return
		}
	}
	reversal, err := h.service.Reverse(r.Context(), ReverseInput{
		TransactionID: id,
		ActorID:       user.ID,
		Memo:          req.Memo,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, reversal)
}

func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrUnauthenticated):
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "login required")
	case errors.Is(err, shared.ErrForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "insufficient role")
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrAlreadyProcessed):
		httpx.ProblemKind(w, http.StatusConflict, "Conflict", err.Error(), "ALREADY_PROCESSED", "")
	case errors.Is(err, ErrNotApproved):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unprocessable Entity", err.Error())
	default:
		h.logger.Error("ledger handler", slog.String("error", err.Error()))
		httpx.RespondError(w, err)
	}
}
