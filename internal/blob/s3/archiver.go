package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/avelinor/wagerbot/internal/domain"
)

// Narrow store interfaces required by the archiver. The archiver only needs
// the time-ranged query methods it actually calls, not the full domain store
// interfaces; the Postgres stores satisfy these implicitly.

// PredictionArchiveStore provides read access to settled predictions for
// archival purposes.
type PredictionArchiveStore interface {
	// ListSettledBefore returns terminal predictions settled strictly before
	// the given cutoff time.
	ListSettledBefore(ctx context.Context, before time.Time) ([]domain.Prediction, error)
}

// BetArchiveStore provides the bets belonging to an archived prediction.
type BetArchiveStore interface {
	ListByPrediction(ctx context.Context, predictionID string) ([]domain.Bet, error)
}

// TransferArchiveStore provides read access to terminal transfer records for
// archival purposes.
type TransferArchiveStore interface {
	// ListTerminalBefore returns committed/rolled-back/failed records
	// completed strictly before the given cutoff time.
	ListTerminalBefore(ctx context.Context, before time.Time) ([]domain.TransferRecord, error)
}

// archivedPrediction is one JSONL line in a prediction archive: the market
// together with every bet placed on it, so a single line is a complete
// settlement record.
type archivedPrediction struct {
	Prediction domain.Prediction `json:"prediction"`
	Bets       []domain.Bet      `json:"bets"`
}

// ArchiveImpl queries the domain stores for records past their retention
// cutoff, serializes them to JSONL, and uploads the result to S3.
//
// Deletion of the archived records from the primary store is intentionally
// NOT performed here -- that is a separate, explicit step to be executed
// after the archive has been verified.
type ArchiveImpl struct {
	writer      domain.BlobWriter
	predictions PredictionArchiveStore
	bets        BetArchiveStore
	transfers   TransferArchiveStore
	audit       domain.AuditStore
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(
	writer domain.BlobWriter,
	predictions PredictionArchiveStore,
	bets BetArchiveStore,
	transfers TransferArchiveStore,
	audit domain.AuditStore,
) *ArchiveImpl {
	return &ArchiveImpl{
		writer:      writer,
		predictions: predictions,
		bets:        bets,
		transfers:   transfers,
		audit:       audit,
	}
}

// ArchiveSettledPredictions uploads every prediction settled before the cutoff,
// bundled with its bets, to archive/predictions/YYYY-MM.jsonl. The archival
// event is recorded in the audit log and the count of archived markets is
// returned.
func (a *ArchiveImpl) ArchiveSettledPredictions(ctx context.Context, before time.Time) (int64, error) {
	ps, err := a.predictions.ListSettledBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive predictions query: %w", err)
	}
	if len(ps) == 0 {
		return 0, nil
	}

	records := make([]archivedPrediction, 0, len(ps))
	for _, p := range ps {
		bets, err := a.bets.ListByPrediction(ctx, p.ID)
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive predictions bets for %s: %w", p.ID, err)
		}
		records = append(records, archivedPrediction{Prediction: p, Bets: bets})
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive predictions marshal: %w", err)
	}

	path := archivePath("predictions", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive predictions upload: %w", err)
	}

	count := int64(len(records))

	if err := a.audit.Log(ctx, "archive.predictions", map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive predictions audit log: %w", err)
	}

	return count, nil
}

// ArchiveTransfers uploads every terminal transfer completed before the
// cutoff to archive/transfers/YYYY-MM.jsonl. Records still in
// compensation_pending are never archived; they stay in the primary store
// until reconciled.
func (a *ArchiveImpl) ArchiveTransfers(ctx context.Context, before time.Time) (int64, error) {
	recs, err := a.transfers.ListTerminalBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive transfers query: %w", err)
	}
	if len(recs) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(recs)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive transfers marshal: %w", err)
	}

	path := archivePath("transfers", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive transfers upload: %w", err)
	}

	count := int64(len(recs))

	if err := a.audit.Log(ctx, "archive.transfers", map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive transfers audit log: %w", err)
	}

	return count, nil
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/predictions/2026-08.jsonl
//	archive/transfers/2026-08.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON (JSONL).
// Each element is marshalled as a single compact JSON line followed by '\n'.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*ArchiveImpl)(nil)
