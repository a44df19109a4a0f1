package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/avelinor/wagerbot/internal/domain"
)

// Archiver moves settled markets and terminal transfers from the database to
// S3 cold storage.
type Archiver struct {
	blobArchiver  domain.Archiver
	retentionDays int
	logger        *slog.Logger
}

// NewArchiver creates a new Archiver.
func NewArchiver(blobArchiver domain.Archiver, retentionDays int, logger *slog.Logger) *Archiver {
	return &Archiver{
		blobArchiver:  blobArchiver,
		retentionDays: retentionDays,
		logger:        logger.With(slog.String("component", "archiver")),
	}
}

// Run executes a single archive run. It calculates the cutoff time based on
// retentionDays and archives settled predictions and terminal transfers older
// than the cutoff.
func (a *Archiver) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-time.Duration(a.retentionDays) * 24 * time.Hour)
	a.logger.InfoContext(ctx, "starting archive run",
		slog.Time("cutoff", cutoff),
		slog.Int("retention_days", a.retentionDays),
	)

	predictionsArchived, err := a.blobArchiver.ArchiveSettledPredictions(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archiving predictions before %v: %w", cutoff, err)
	}

	transfersArchived, err := a.blobArchiver.ArchiveTransfers(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archiving transfers before %v: %w", cutoff, err)
	}

	a.logger.InfoContext(ctx, "archive run complete",
		slog.Int64("predictions_archived", predictionsArchived),
		slog.Int64("transfers_archived", transfersArchived),
	)

	return nil
}

// RunEvery runs the archiver at the given interval until the context is
// cancelled. A failed run is logged and does not stop the loop.
func (a *Archiver) RunEvery(ctx context.Context, interval time.Duration) error {
	a.logger.Info("archiver started", slog.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("archiver stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := a.Run(ctx); err != nil {
				a.logger.Error("archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}
