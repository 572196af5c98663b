package jobs

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	jobmetrics "github.com/PettaPuang/nozzle.website-sub003/internal/jobs"
	"github.com/PettaPuang/nozzle.website-sub003/internal/stations"
	"github.com/PettaPuang/nozzle.website-sub003/internal/view"
)

// StationLister resolves every gas station to warm.
type StationLister interface {
	ListStations(ctx context.Context) ([]stations.GasStation, error)
}

// SnapshotBuilder builds one station's dashboard snapshot.
type SnapshotBuilder interface {
	StationSnapshot(ctx context.Context, stationID uuid.UUID) (view.StationSnapshot, error)
}

// ViewWarmupJob prebuilds dashboard snapshots so the morning shift does not
// pay the first-hit latency. A single failed station does not stop the run.
type ViewWarmupJob struct {
	lister  StationLister
	builder SnapshotBuilder
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewViewWarmupJob constructs the job.
func NewViewWarmupJob(lister StationLister, builder SnapshotBuilder, logger *slog.Logger, metrics *jobmetrics.Metrics) *ViewWarmupJob {
	return &ViewWarmupJob{lister: lister, builder: builder, logger: logger, metrics: metrics}
}

// Handle processes TaskViewWarmup tasks.
func (j *ViewWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track("view_warmup")
	list, err := j.lister.ListStations(ctx)
	if err != nil {
		return tracker.End(err)
	}
	warmed := 0
	for _, station := range list {
		if _, err := j.builder.StationSnapshot(ctx, station.ID); err != nil {
			j.logger.Warn("warmup station",
				slog.String("station_id", station.ID.String()),
				slog.Any("error", err))
			continue
		}
		warmed++
	}
	j.logger.Info("view warmup done", slog.Int("stations", warmed))
	return tracker.End(nil)
}
