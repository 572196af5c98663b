package shifts

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/PettaPuang/nozzle.website-sub003/internal/shared"
)

type fakeIdempotency struct {
	keys map[string]bool
}

func newFakeIdempotency() *fakeIdempotency {
	return &fakeIdempotency{keys: make(map[string]bool)}
}

func (f *fakeIdempotency) CheckAndInsert(ctx context.Context, key, module string) error {
	if f.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	f.keys[key] = true
	return nil
}

func (f *fakeIdempotency) Delete(ctx context.Context, key string) error {
	delete(f.keys, key)
	return nil
}

func depositRequest(t *testing.T, shiftID, idemKey string) *http.Request {
	t.Helper()
	body, err := json.Marshal(map[string]any{"declaredAmount": 0})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/shifts/"+shiftID+"/deposit", bytes.NewReader(body))
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}
	sess := &shared.Session{}
	sess.SetUser(manager())
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func depositRouter(fx *fixture, idem IdempotencyChecker) chi.Router {
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), fx.svc, idem)
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r
}

func TestInputDepositRejectsReplayedKey(t *testing.T) {
	fx := newFixture(t)
	shift := fx.addShift(SlotMorning, ShiftCompleted, true)
	idem := newFakeIdempotency()
	router := depositRouter(fx, idem)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, depositRequest(t, shift.ID.String(), "req-1"))
	require.Equal(t, http.StatusCreated, rec.Code)

	// A timed-out client retrying the same key must not create a second
	// deposit.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, depositRequest(t, shift.ID.String(), "req-1"))
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Len(t, fx.repo.deposits, 1)
}

func TestInputDepositReleasesKeyOnFailure(t *testing.T) {
	fx := newFixture(t)
	shift := fx.addShift(SlotMorning, ShiftCompleted, false)
	idem := newFakeIdempotency()
	router := depositRouter(fx, idem)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, depositRequest(t, shift.ID.String(), "req-2"))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.False(t, idem.keys["req-2"])

	// The same key works once the shift is verified.
	shift.IsVerified = true
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, depositRequest(t, shift.ID.String(), "req-2"))
	require.Equal(t, http.StatusCreated, rec.Code)
}
