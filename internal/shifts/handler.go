package shifts

import (
	"context"
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

// IdempotencyChecker guards mutating endpoints against client retries.
// shared.IdempotencyStore satisfies it.
type IdempotencyChecker interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Handler exposes shift, verification and deposit endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	idem     IdempotencyChecker
	validate *validator.Validate
}

// NewHandler builds Handler instance. idem may be nil, disabling the
// Idempotency-Key guard on deposit input.
func NewHandler(logger *slog.Logger, service *Service, idem IdempotencyChecker) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		idem:     idem,
		validate: validator.New(),
	}
}

// MountRoutes registers shift routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/stations/{stationID}/shifts", h.listShifts)
	r.Post("/stations/{stationID}/shifts", h.createShift)
	r.Get("/shifts/{shiftID}", h.showShift)
	r.Post("/shifts/{shiftID}/start", h.startShift)
	r.Post("/shifts/{shiftID}/complete", h.completeShift)
	r.Post("/shifts/{shiftID}/verify", h.verifyShift)
	r.Post("/shifts/{shiftID}/unverify", h.unverifyShift)
	r.Delete("/shifts/{shiftID}", h.deleteShift)
	r.Get("/shifts/{shiftID}/deposit", h.showDeposit)
	r.Post("/shifts/{shiftID}/deposit", h.inputDeposit)
	r.Post("/shifts/{shiftID}/deposit/approve", h.approveDeposit)
	r.Post("/shifts/{shiftID}/deposit/reject", h.rejectDeposit)
}

func (h *Handler) listShifts(w http.ResponseWriter, r *http.Request) {
	stationID, err := uuid.Parse(chi.URLParam(r, "stationID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid station id")
		return
	}
	sess := shared.SessionFromContext(r.Context())
	if _, err := shared.RequireStationRoles(sess, stationID,
		shared.RoleAdministrator, shared.RoleDeveloper, shared.RoleManager,
		shared.RoleFinance, shared.RoleOperator, shared.RoleOwner, shared.RoleOwnerGroup); err != nil {
		h.respondErr(w, err)
		return
	}
	date, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid date, want YYYY-MM-DD")
		return
	}
	shifts, err := h.service.ListShifts(r.Context(), stationID, date)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"shifts": shifts})
}

type createShiftRequest struct {
	StationID  string `json:"stationId" validate:"required,uuid"`
	OperatorID string `json:"operatorId" validate:"required,uuid"`
	Date       string `json:"date" validate:"required"`
	Slot       string `json:"slot" validate:"required,oneof=MORNING AFTERNOON NIGHT"`
}

func (h *Handler) createShift(w http.ResponseWriter, r *http.Request) {
	gasStationID, err := uuid.Parse(chi.URLParam(r, "stationID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid station id")
		return
	}
	sess := shared.SessionFromContext(r.Context())
	user, err := shared.RequireStationRoles(sess, gasStationID,
		shared.RoleAdministrator, shared.RoleDeveloper, shared.RoleManager)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	var req createShiftRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid date, want YYYY-MM-DD")
		return
	}
	pumpStationID, _ := uuid.Parse(req.StationID)
	operatorID, _ := uuid.Parse(req.OperatorID)
	shift, err := h.service.CreateShift(r.Context(), CreateShiftInput{
		StationID:    pumpStationID,
		GasStationID: gasStationID,
		OperatorID:   operatorID,
		Date:         date,
		Slot:         Slot(req.Slot),
		Actor:        user,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, shift)
}

func (h *Handler) showShift(w http.ResponseWriter, r *http.Request) {
	shiftID, _, ok := h.shiftAccess(w, r,
		shared.RoleAdministrator, shared.RoleDeveloper, shared.RoleManager,
		shared.RoleFinance, shared.RoleOperator, shared.RoleOwner, shared.RoleOwnerGroup)
	if !ok {
		return
	}
	shift, err := h.service.GetShift(r.Context(), shiftID)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	readings, err := h.service.ListNozzleReadings(r.Context(), shiftID)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"shift": shift, "nozzleReadings": readings})
}

type nozzleReadingRequest struct {
	NozzleID  string   `json:"nozzleId" validate:"required,uuid"`
	Totalizer int64    `json:"totalizer" validate:"min=0"`
	PumpTest  int64    `json:"pumpTest" validate:"min=0"`
	PhotoURLs []string `json:"photoUrls"`
}

type shiftReadingsRequest struct {
	Readings []nozzleReadingRequest `json:"readings" validate:"required,min=1,dive"`
}

func (h *Handler) decodeReadings(w http.ResponseWriter, r *http.Request) ([]NozzleReadingInput, bool) {
	var req shiftReadingsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return nil, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return nil, false
	}
	inputs := make([]NozzleReadingInput, 0, len(req.Readings))
	for _, in := range req.Readings {
		nozzleID, _ := uuid.Parse(in.NozzleID)
		inputs = append(inputs, NozzleReadingInput{
			NozzleID:  nozzleID,
			Totalizer: in.Totalizer,
			PumpTest:  in.PumpTest,
			PhotoURLs: in.PhotoURLs,
		})
	}
	return inputs, true
}

func (h *Handler) startShift(w http.ResponseWriter, r *http.Request) {
	shiftID, user, ok := h.shiftAccess(w, r,
		shared.RoleAdministrator, shared.RoleDeveloper, shared.RoleManager, shared.RoleOperator)
	if !ok {
		return
	}
	readings, ok := h.decodeReadings(w, r)
	if !ok {
		return
	}
	if err := h.service.StartShift(r.Context(), shiftID, readings, user); err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"started": true})
}

func (h *Handler) completeShift(w http.ResponseWriter, r *http.Request) {
	shiftID, user, ok := h.shiftAccess(w, r,
		shared.RoleAdministrator, shared.RoleDeveloper, shared.RoleManager, shared.RoleOperator)
	if !ok {
		return
	}
	readings, ok := h.decodeReadings(w, r)
	if !ok {
		return
	}
	if err := h.service.CompleteShift(r.Context(), shiftID, readings, user); err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"completed": true})
}

func (h *Handler) verifyShift(w http.ResponseWriter, r *http.Request) {
	shiftID, user, ok := h.shiftAccess(w, r,
		shared.RoleAdministrator, shared.RoleDeveloper, shared.RoleManager)
	if !ok {
		return
	}
	if err := h.service.Verify(r.Context(), shiftID, user); err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"verified": true})
}

func (h *Handler) unverifyShift(w http.ResponseWriter, r *http.Request) {
	shiftID, user, ok := h.shiftAccess(w, r,
		shared.RoleAdministrator, shared.RoleDeveloper, shared.RoleManager)
	if !ok {
		return
	}
	if err := h.service.Unverify(r.Context(), shiftID, user); err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"verified": false})
}

func (h *Handler) deleteShift(w http.ResponseWriter, r *http.Request) {
	shiftID, user, ok := h.shiftAccess(w, r,
		shared.RoleAdministrator, shared.RoleDeveloper, shared.RoleManager)
	if !ok {
		return
	}
	if err := h.service.DeleteShift(r.Context(), shiftID, user); err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *Handler) showDeposit(w http.ResponseWriter, r *http.Request) {
	shiftID, _, ok := h.shiftAccess(w, r,
		shared.RoleAdministrator, shared.RoleDeveloper, shared.RoleManager,
		shared.RoleFinance, shared.RoleOperator, shared.RoleOwner, shared.RoleOwnerGroup)
	if !ok {
		return
	}
	deposit, err := h.service.GetDeposit(r.Context(), shiftID)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, deposit)
}

type titipanRequest struct {
	Label  string `json:"label" validate:"required"`
	Amount int64  `json:"amount" validate:"gt=0"`
}

type freeFuelRequest struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	Liters    int64  `json:"liters" validate:"gt=0"`
}

type inputDepositRequest struct {
	DeclaredAmount int64             `json:"declaredAmount" validate:"min=0"`
	Titipan        []titipanRequest  `json:"titipan" validate:"dive"`
	FreeFuel       []freeFuelRequest `json:"freeFuel" validate:"dive"`
	PhotoURLs      []string          `json:"photoUrls"`
}

func (h *Handler) inputDeposit(w http.ResponseWriter, r *http.Request) {
	shiftID, user, ok := h.shiftAccess(w, r,
		shared.RoleAdministrator, shared.RoleDeveloper, shared.RoleManager, shared.RoleOperator)
	if !ok {
		return
	}
	var req inputDepositRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := InputDepositInput{
		ShiftID:        shiftID,
		DeclaredAmount: req.DeclaredAmount,
		PhotoURLs:      req.PhotoURLs,
		Actor:          user,
	}
	for _, t := range req.Titipan {
		input.Titipan = append(input.Titipan, TitipanAllocation{Label: t.Label, Amount: t.Amount})
	}
	for _, f := range req.FreeFuel {
		productID, _ := uuid.Parse(f.ProductID)
		input.FreeFuel = append(input.FreeFuel, FreeFuelAllocation{ProductID: productID, Liters: f.Liters})
	}
	idemKey := r.Header.Get("Idempotency-Key")
	if h.idem != nil && idemKey != "" {
		if err := h.idem.CheckAndInsert(r.Context(), idemKey, "deposits"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				httpx.ProblemKind(w, http.StatusConflict, "Conflict", err.Error(), "DUPLICATE_REQUEST", "")
				return
			}
			h.respondErr(w, err)
			return
		}
	}
	deposit, err := h.service.InputDeposit(r.Context(), input)
	if err != nil {
		// Release the key so the client can retry after fixing the request.
		if h.idem != nil && idemKey != "" {
			_ = h.idem.Delete(r.Context(), idemKey)
		}
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, deposit)
}

type approveDepositRequest struct {
	ReceivedAmount int64 `json:"receivedAmount" validate:"min=0"`
}

func (h *Handler) approveDeposit(w http.ResponseWriter, r *http.Request) {
	shiftID, user, ok := h.shiftAccess(w, r,
		shared.RoleAdministrator, shared.RoleDeveloper, shared.RoleManager, shared.RoleFinance)
	if !ok {
		return
	}
	var req approveDepositRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	deposit, err := h.service.ApproveDeposit(r.Context(), shiftID, req.ReceivedAmount, user)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, deposit)
}

type rejectDepositRequest struct {
	Note string `json:"note"`
}

func (h *Handler) rejectDeposit(w http.ResponseWriter, r *http.Request) {
	shiftID, user, ok := h.shiftAccess(w, r,
		shared.RoleAdministrator, shared.RoleDeveloper, shared.RoleManager, shared.RoleFinance)
	if !ok {
		return
	}
	var req rejectDepositRequest
	_ = httpx.DecodeJSON(r, &req)
	deposit, err := h.service.RejectDeposit(r.Context(), shiftID, req.Note, user)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, deposit)
}

func (h *Handler) shiftAccess(w http.ResponseWriter, r *http.Request, roles ...shared.Role) (uuid.UUID, shared.AuthUser, bool) {
	shiftID, err := uuid.Parse(chi.URLParam(r, "shiftID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid shift id")
		return uuid.Nil, shared.AuthUser{}, false
	}
	sess := shared.SessionFromContext(r.Context())
	user, err := shared.RequireRoles(sess, roles...)
	if err != nil {
		h.respondErr(w, err)
		return uuid.Nil, shared.AuthUser{}, false
	}
	return shiftID, user, true
}

func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	var seqErr *OutOfSequenceError
	switch {
	case errors.As(err, &seqErr):
		httpx.RespondError(w, err)
	case errors.Is(err, shared.ErrUnauthenticated):
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "login required")
	case errors.Is(err, shared.ErrForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "insufficient role")
	case errors.Is(err, ErrNotFound), errors.Is(err, stations.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrAlreadyProcessed),
		errors.Is(err, ErrDepositExists),
		errors.Is(err, ErrShiftVerified),
		errors.Is(err, ErrInvalidTransition):
		httpx.ProblemKind(w, http.StatusConflict, "Conflict", err.Error(), "ALREADY_PROCESSED", "")
	case errors.Is(err, ErrApprovedDepositExists):
		httpx.ProblemKind(w, http.StatusConflict, "Conflict", err.Error(), "APPROVED_DEPOSIT_EXISTS", "")
	case errors.Is(err, ErrShiftNotCompleted), errors.Is(err, ErrShiftNotVerified),
		errors.Is(err, ErrTotalizerRegression):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unprocessable", err.Error())
	default:
		h.logger.Error("shifts handler", slog.String("error", err.Error()))
		httpx.RespondError(w, err)
	}
}
