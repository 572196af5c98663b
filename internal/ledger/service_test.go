package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	txs      map[uuid.UUID]Transaction
	entries  map[uuid.UUID][]JournalEntry
	coaIDs   map[string]int64
	sources  map[string]uuid.UUID
	nextCOA  int64
	nextLine int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		txs:     map[uuid.UUID]Transaction{},
		entries: map[uuid.UUID][]JournalEntry{},
		coaIDs:  map[string]int64{},
		sources: map[string]uuid.UUID{},
	}
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, f)
}

func (f *fakeRepo) Get(ctx context.Context, id uuid.UUID) (Transaction, error) {
	tx, ok := f.txs[id]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	tx.Entries = f.entries[id]
	return tx, nil
}

func (f *fakeRepo) ListByStation(ctx context.Context, gasStationID uuid.UUID, limit, offset int) ([]Transaction, error) {
	var out []Transaction
	for _, tx := range f.txs {
		if tx.GasStationID == gasStationID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (f *fakeRepo) coaID(account AccountRef) int64 {
	if id, ok := f.coaIDs[account.Name]; ok {
		return id
	}
	f.nextCOA++
	f.coaIDs[account.Name] = f.nextCOA
	return f.nextCOA
}

func (f *fakeRepo) Post(ctx context.Context, in PostingInput) (Transaction, error) {
	sourceKey := in.SourceModule + "/" + in.SourceID.String()
	if _, ok := f.sources[sourceKey]; ok {
		return Transaction{}, ErrSourceConflict
	}
	id := uuid.New()
	tx := Transaction{
		ID:             id,
		GasStationID:   in.GasStationID,
		ProductID:      in.ProductID,
		Date:           in.Date,
		Description:    in.Description,
		Type:           in.Type,
		ApprovalStatus: in.Status,
		PurchaseVolume: in.PurchaseVolume,
		EvidenceURLs:   in.EvidenceURLs,
		CreatedByID:    in.CreatedBy,
		SourceModule:   in.SourceModule,
		SourceID:       in.SourceID,
	}
	for _, line := range in.Lines {
		coaID := line.COAID
		if coaID == 0 {
			coaID = f.coaID(line.Account)
		}
		f.nextLine++
		f.entries[id] = append(f.entries[id], JournalEntry{
			ID:            f.nextLine,
			TransactionID: id,
			COAID:         coaID,
			Debit:         line.Debit,
			Credit:        line.Credit,
			Description:   line.Description,
		})
	}
	f.txs[id] = tx
	f.sources[sourceKey] = id
	return tx, nil
}

func (f *fakeRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (Transaction, error) {
	tx, ok := f.txs[id]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	return tx, nil
}

func (f *fakeRepo) GetEntries(ctx context.Context, id uuid.UUID) ([]JournalEntry, error) {
	return f.entries[id], nil
}

func (f *fakeRepo) SetApproval(ctx context.Context, id uuid.UUID, status ApprovalStatus, approverID uuid.UUID) error {
	tx, ok := f.txs[id]
	if !ok {
		return ErrNotFound
	}
	tx.ApprovalStatus = status
	tx.ApproverID = &approverID
	f.txs[id] = tx
	return nil
}

func newTestService(repo *fakeRepo) *Service {
	svc := NewService(repo, nil)
	svc.WithNow(func() time.Time {
		return time.Date(2025, 7, 10, 12, 0, 0, 0, time.UTC)
	})
	return svc
}

func pendingPosting() PostingInput {
	return PostingInput{
		GasStationID: uuid.New(),
		Date:         time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC),
		Description:  "Pembelian Pertalite 5000 L",
		Type:         TransactionTypePurchaseBBM,
		Status:       StatusPending,
		CreatedBy:    uuid.New(),
		SourceModule: "purchases",
		SourceID:     uuid.New(),
		Lines: []LineInput{
			{Account: LOAccount("Pertalite"), Debit: 50_000_000},
			{Account: CashAccount(), Credit: 50_000_000},
		},
	}
}

func TestPostRejectsUnbalancedInput(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	in := pendingPosting()
	in.Lines[1].Credit = 40_000_000
	_, err := svc.Post(context.Background(), in)
	require.ErrorIs(t, err, ErrUnbalanced)
	require.Empty(t, repo.txs)
}

func TestPostRejectsDuplicateSource(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	in := pendingPosting()
	_, err := svc.Post(context.Background(), in)
	require.NoError(t, err)
	_, err = svc.Post(context.Background(), in)
	require.ErrorIs(t, err, ErrSourceConflict)
}

func TestApproveIsSingleShot(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	posted, err := svc.Post(context.Background(), pendingPosting())
	require.NoError(t, err)

	approver := uuid.New()
	decided, err := svc.Approve(context.Background(), posted.ID, approver)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, decided.ApprovalStatus)
	require.NotNil(t, decided.ApproverID)
	require.Equal(t, approver, *decided.ApproverID)

	_, err = svc.Approve(context.Background(), posted.ID, approver)
	require.ErrorIs(t, err, ErrAlreadyProcessed)
	_, err = svc.Reject(context.Background(), posted.ID, approver)
	require.ErrorIs(t, err, ErrAlreadyProcessed)
}

func TestRejectKeepsJournalOnRecord(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	posted, err := svc.Post(context.Background(), pendingPosting())
	require.NoError(t, err)

	_, err = svc.Reject(context.Background(), posted.ID, uuid.New())
	require.NoError(t, err)

	stored, err := svc.Get(context.Background(), posted.ID)
	require.NoError(t, err)
	require.Equal(t, StatusRejected, stored.ApprovalStatus)
	require.Len(t, stored.Entries, 2)
}

func TestReverseNegatesEntries(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	in := pendingPosting()
	in.Status = StatusApproved
	posted, err := svc.Post(context.Background(), in)
	require.NoError(t, err)

	actor := uuid.New()
	reversal, err := svc.Reverse(context.Background(), ReverseInput{
		TransactionID: posted.ID,
		ActorID:       actor,
	})
	require.NoError(t, err)
	require.Equal(t, "purchases:REVERSAL", reversal.SourceModule)
	require.Equal(t, StatusApproved, reversal.ApprovalStatus)

	original := repo.entries[posted.ID]
	reversed := repo.entries[reversal.ID]
	require.Len(t, reversed, len(original))
	for i, entry := range original {
		require.Equal(t, entry.COAID, reversed[i].COAID)
		require.Equal(t, entry.Debit, reversed[i].Credit)
		require.Equal(t, entry.Credit, reversed[i].Debit)
	}
}

func TestReverseRequiresApprovedTransaction(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	posted, err := svc.Post(context.Background(), pendingPosting())
	require.NoError(t, err)

	_, err = svc.Reverse(context.Background(), ReverseInput{TransactionID: posted.ID, ActorID: uuid.New()})
	require.ErrorIs(t, err, ErrNotApproved)
}

func TestReverseUsesMemoWhenProvided(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	in := pendingPosting()
	in.Status = StatusApproved
	posted, err := svc.Post(context.Background(), in)
	require.NoError(t, err)

	reversal, err := svc.Reverse(context.Background(), ReverseInput{
		TransactionID: posted.ID,
		ActorID:       uuid.New(),
		Memo:          "Salah input harga",
	})
	require.NoError(t, err)
	require.Equal(t, "Salah input harga", reversal.Description)
}
