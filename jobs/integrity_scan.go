package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/PettaPuang/nozzle.website-sub003/internal/jobs"
)

// IntegrityScanJob re-verifies that Σdebit equals Σcredit for every posted
// journal. The posting path already enforces the invariant, so any hit here
// points at out-of-band writes.
type IntegrityScanJob struct {
	pool    *pgxpool.Pool
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewIntegrityScanJob constructs the job.
func NewIntegrityScanJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *IntegrityScanJob {
	return &IntegrityScanJob{pool: pool, logger: logger, metrics: metrics}
}

// Handle processes TaskLedgerIntegrityScan tasks.
func (j *IntegrityScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track("ledger_integrity_scan")
	var payload IntegrityScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	return tracker.End(j.scan(ctx, payload.DaysBack))
}

// integrityScanQuery aggregates the journal_entries rows the ledger poster
// writes; the table names must stay in lockstep with internal/ledger.
const integrityScanQuery = `SELECT t.id, t.source_module, SUM(je.debit), SUM(je.credit)
FROM transactions t
JOIN journal_entries je ON je.transaction_id = t.id
WHERE ($1::timestamptz IS NULL OR t.created_at >= $1)
GROUP BY t.id, t.source_module
HAVING SUM(je.debit) <> SUM(je.credit)`

func (j *IntegrityScanJob) scan(ctx context.Context, daysBack int) error {
	var since any
	if daysBack > 0 {
		since = time.Now().UTC().AddDate(0, 0, -daysBack)
	}
	rows, err := j.pool.Query(ctx, integrityScanQuery, since)
	if err != nil {
		return err
	}
	defer rows.Close()

	found := 0
	for rows.Next() {
		var id, sourceModule string
		var debit, credit int64
		if err := rows.Scan(&id, &sourceModule, &debit, &credit); err != nil {
			return err
		}
		found++
		j.logger.Error("unbalanced journal",
			slog.String("transaction_id", id),
			slog.String("source_module", sourceModule),
			slog.Int64("debit", debit),
			slog.Int64("credit", credit))
	}
	if err := rows.Err(); err != nil {
		return err
	}
	j.metrics.AddFindings("ledger_integrity_scan", found)
	if found == 0 {
		j.logger.Info("ledger integrity scan clean")
	}
	return nil
}
