package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

type fakeDBTX struct{}

func (fakeDBTX) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (fakeDBTX) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("unexpected query")
}

func (fakeDBTX) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return idRow{}
}

type idRow struct{}

func (idRow) Scan(dest ...any) error {
	for _, d := range dest {
		if id, ok := d.(*int64); ok {
			*id = 1
		}
	}
	return nil
}

func resolvedPosting() PostingInput {
	return PostingInput{
		GasStationID: uuid.New(),
		Date:         time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC),
		Description:  "Pembelian Pertalite",
		Type:         TransactionTypePurchaseBBM,
		SourceModule: "purchases",
		SourceID:     uuid.New(),
		Lines: []LineInput{
			{COAID: 1, Debit: 50_000_000},
			{COAID: 2, Credit: 50_000_000},
		},
	}
}

func TestPostFiresPostedHook(t *testing.T) {
	poster := NewPoster()
	var modules []string
	poster.OnPosted(func(m string) { modules = append(modules, m) })

	_, err := poster.Post(context.Background(), fakeDBTX{}, resolvedPosting())
	require.NoError(t, err)
	require.Equal(t, []string{"purchases"}, modules)
}

func TestPostSkipsHookOnInvalidInput(t *testing.T) {
	poster := NewPoster()
	var fired bool
	poster.OnPosted(func(string) { fired = true })

	in := resolvedPosting()
	in.Lines[1].Credit = 1
	_, err := poster.Post(context.Background(), fakeDBTX{}, in)
	require.ErrorIs(t, err, ErrUnbalanced)
	require.False(t, fired)
}
