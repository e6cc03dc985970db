package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/aurum-erp/aurum/internal/inventory"
)

// LedgerIntegrityJob scans stock balances for rows whose stored value no
// longer matches average cost times the combined quantity+weight base. A
// nonzero count means a mutation bypassed the ledger or data was edited by
// hand; the job logs loudly so it gets looked at.
type LedgerIntegrityJob struct {
	repo   inventory.Repository
	logger *slog.Logger
}

// NewLedgerIntegrityJob constructs the integrity scan job.
func NewLedgerIntegrityJob(repo inventory.Repository, logger *slog.Logger) *LedgerIntegrityJob {
	return &LedgerIntegrityJob{repo: repo, logger: logger}
}

// Handle processes TaskLedgerIntegrityScan tasks.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload LedgerIntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tolerance := payload.Tolerance
	if tolerance <= 0 {
		tolerance = 0.01
	}
	drifted, err := j.repo.SumValueDrift(ctx, tolerance)
	if err != nil {
		j.logger.Error("ledger integrity scan", slog.Any("error", err))
		return err
	}
	if drifted > 0 {
		j.logger.Error("ledger integrity drift detected",
			slog.Int64("balances", drifted),
			slog.Float64("tolerance", tolerance))
	} else {
		j.logger.Info("ledger integrity scan clean", slog.Float64("tolerance", tolerance))
	}
	return nil
}
