package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/PettaPuang/nozzle.website-sub003/internal/shared"
)

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates ledger postings and the approval workflow.
type Service struct {
	repo  Repository
	audit AuditPort
	now   func() time.Time
}

// NewService constructs the ledger service.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Get returns a transaction with its entries.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Transaction, error) {
	return s.repo.Get(ctx, id)
}

// ListByStation returns recent transactions for a gas station.
func (s *Service) ListByStation(ctx context.Context, gasStationID uuid.UUID, limit, offset int) ([]Transaction, error) {
	return s.repo.ListByStation(ctx, gasStationID, limit, offset)
}

// Post validates and commits a standalone posting in its own transaction.
func (s *Service) Post(ctx context.Context, input PostingInput) (Transaction, error) {
	if err := input.Validate(); err != nil {
		return Transaction{}, err
	}
	var posted Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		posted, err = tx.Post(ctx, input)
		return err
	})
	if err != nil {
		return Transaction{}, err
	}
	s.recordAudit(ctx, input.CreatedBy, "ledger.post", posted.ID, map[string]any{
		"type":          string(posted.Type),
		"source_module": input.SourceModule,
		"source_id":     input.SourceID.String(),
	})
	return posted, nil
}

// Approve moves a PENDING transaction to APPROVED.
func (s *Service) Approve(ctx context.Context, id, approverID uuid.UUID) (Transaction, error) {
	return s.decide(ctx, id, approverID, StatusApproved, "ledger.approve")
}

// Reject moves a PENDING transaction to REJECTED. The journal stays on
// record but is excluded from every balance by status.
func (s *Service) Reject(ctx context.Context, id, approverID uuid.UUID) (Transaction, error) {
	return s.decide(ctx, id, approverID, StatusRejected, "ledger.reject")
}

func (s *Service) decide(ctx context.Context, id, approverID uuid.UUID, status ApprovalStatus, action string) (Transaction, error) {
	var decided Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.ApprovalStatus != StatusPending {
			return ErrAlreadyProcessed
		}
		if err := tx.SetApproval(ctx, id, status, approverID); err != nil {
			return err
		}
		decided = current
		decided.ApprovalStatus = status
		decided.ApproverID = &approverID
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}
	s.recordAudit(ctx, approverID, action, id, nil)
	return decided, nil
}

// Reverse posts a negated copy of an APPROVED transaction. Historical
// entries are never mutated in place.
func (s *Service) Reverse(ctx context.Context, input ReverseInput) (Transaction, error) {
	var reversal Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.GetForUpdate(ctx, input.TransactionID)
		if err != nil {
			return err
		}
		if original.ApprovalStatus != StatusApproved {
			return ErrNotApproved
		}
		entries, err := tx.GetEntries(ctx, original.ID)
		if err != nil {
			return err
		}
		posting := PostingInput{
			GasStationID: original.GasStationID,
			ProductID:    original.ProductID,
			Date:         original.Date,
			Description:  reversalMemo(input.Memo, original.Description),
			Type:         original.Type,
			Status:       StatusApproved,
			CreatedBy:    input.ActorID,
			SourceModule: original.SourceModule + ":REVERSAL",
			SourceID:     uuid.New(),
			Lines:        reverseLines(entries),
		}
		reversal, err = tx.Post(ctx, posting)
		return err
	})
	if err != nil {
		return Transaction{}, err
	}
	s.recordAudit(ctx, input.ActorID, "ledger.reverse", input.TransactionID, map[string]any{
		"reversal_id": reversal.ID.String(),
	})
	return reversal, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID uuid.UUID, action string, txID uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "transaction",
		EntityID: txID.String(),
		Meta:     meta,
		At:       s.now(),
	})
}

func reverseLines(entries []JournalEntry) []LineInput {
	out := make([]LineInput, 0, len(entries))
	for _, e := range entries {
		out = append(out, LineInput{
			COAID:       e.COAID,
			Debit:       e.Credit,
			Credit:      e.Debit,
			Description: e.Description,
		})
	}
	return out
}

func reversalMemo(memo, original string) string {
	if memo != "" {
		return memo
	}
	return fmt.Sprintf("Pembalikan: %s", original)
}
