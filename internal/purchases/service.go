package purchases

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/PettaPuang/nozzle.website-sub003/internal/ledger"
	"github.com/PettaPuang/nozzle.website-sub003/internal/shared"
	"github.com/PettaPuang/nozzle.website-sub003/internal/stations"
)

// ProductPort resolves product master data.
type ProductPort interface {
	GetProduct(ctx context.Context, id uuid.UUID) (stations.Product, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ViewPort signals station data changes after a successful commit.
type ViewPort interface {
	Invalidate(ctx context.Context, gasStationID uuid.UUID)
}

// Service tracks BBM purchases and their outstanding delivery volume.
type Service struct {
	repo     Repository
	products ProductPort
	audit    AuditPort
	views    ViewPort
	now      func() time.Time
}

// NewService constructs the purchases service.
func NewService(repo Repository, products ProductPort, audit AuditPort, views ViewPort) *Service {
	return &Service{repo: repo, products: products, audit: audit, views: views, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// PaymentMethodCash pays from the station's cash drawer; anything else is
// treated as a named bank account.
const PaymentMethodCash = "CASH"

// CreatePurchaseInput describes a new BBM purchase.
type CreatePurchaseInput struct {
	GasStationID    uuid.UUID
	ProductID       uuid.UUID
	VolumeLiters    int64
	PaymentMethod   string
	Date            time.Time
	ReferenceNumber string
	Notes           string
	PhotoURLs       []string
	Actor           shared.AuthUser
}

// CreatePurchase journals the purchase against the product's LO account.
// Privileged actors post directly as APPROVED; others wait for a manager
// decision through the ledger approval endpoints.
func (s *Service) CreatePurchase(ctx context.Context, input CreatePurchaseInput) (ledger.Transaction, error) {
	product, err := s.products.GetProduct(ctx, input.ProductID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	if product.GasStationID != input.GasStationID {
		return ledger.Transaction{}, errors.New("purchases: product belongs to another station")
	}
	payment := ledger.CashAccount()
	if input.PaymentMethod != "" && input.PaymentMethod != PaymentMethodCash {
		payment = ledger.BankAccount(input.PaymentMethod)
	}
	date := input.Date
	if date.IsZero() {
		date = s.now()
	}
	posting, err := ledger.BuildPurchase(ledger.PurchaseParams{
		GasStationID:    input.GasStationID,
		ProductID:       input.ProductID,
		ProductName:     product.Name,
		VolumeLiters:    input.VolumeLiters,
		UnitPrice:       product.PurchasePrice,
		Payment:         payment,
		Date:            date,
		ReferenceNumber: input.ReferenceNumber,
		Notes:           input.Notes,
		CreatedBy:       input.Actor.ID,
		SourceID:        uuid.New(),
		Privileged:      input.Actor.IsPrivileged(),
	})
	if err != nil {
		return ledger.Transaction{}, err
	}
	posting.EvidenceURLs = input.PhotoURLs
	var posted ledger.Transaction
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		posted, err = tx.PostJournal(ctx, posting)
		return err
	})
	if err != nil {
		return ledger.Transaction{}, err
	}
	s.recordAudit(ctx, input.Actor.ID, "purchase.create", posted.ID.String(), map[string]any{
		"volume": input.VolumeLiters,
	})
	s.invalidate(ctx, input.GasStationID)
	return posted, nil
}

// ListPurchases returns purchase transactions for one product.
func (s *Service) ListPurchases(ctx context.Context, gasStationID, productID uuid.UUID, limit, offset int) ([]ledger.Transaction, error) {
	return s.repo.ListPurchases(ctx, gasStationID, productID, limit, offset)
}

// RemainingLO returns the aggregate outstanding delivery volume for one
// product, net of volume reserved by pending unloads.
func (s *Service) RemainingLO(ctx context.Context, gasStationID, productID uuid.UUID) (int64, error) {
	return s.repo.RemainingLO(ctx, gasStationID, productID)
}

// ListOutstanding returns approved purchases that still have undelivered
// volume, oldest first.
func (s *Service) ListOutstanding(ctx context.Context, gasStationID, productID uuid.UUID) ([]Outstanding, error) {
	return s.repo.ListOutstanding(ctx, gasStationID, productID)
}

func (s *Service) recordAudit(ctx context.Context, actorID uuid.UUID, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "purchases",
		EntityID: entityID,
		Meta:     meta,
		At:       s.now(),
	})
}

func (s *Service) invalidate(ctx context.Context, gasStationID uuid.UUID) {
	if s.views == nil {
		return
	}
	s.views.Invalidate(ctx, gasStationID)
}
