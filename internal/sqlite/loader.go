package sqlite

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"

	"github.com/mesh-intelligence/worktrack/pkg/types"
)

// ImportReport counts the outcome of an Import.
type ImportReport struct {
	Synced    int `json:"synced"`
	Failed    int `json:"failed"`
	Malformed int `json:"malformed"`
	Edges     int `json:"edges"`
}

// Export writes one ExportRecord per entity to path, parents before
// children, and returns the number of records written.
func (b *Backend) Export(ctx context.Context, path string) (int, error) {
	release, err := b.acquire()
	if err != nil {
		return 0, err
	}
	defer release()

	var records []types.ExportRecord
	for _, kind := range types.Kinds {
		entities, err := b.entities.query(ctx, b.db, types.EntityQuery{Kind: kind, IncludeArchived: true})
		if err != nil {
			return 0, err
		}
		for _, e := range entities {
			rec, err := b.exportRecord(ctx, e)
			if err != nil {
				return 0, err
			}
			records = append(records, rec)
		}
	}
	if err := writeAtomic(path, encodeLines(records)); err != nil {
		return 0, err
	}
	b.logger.Info("exported entities", slog.String("path", path), slog.Int("records", len(records)))
	return len(records), nil
}

func (b *Backend) exportRecord(ctx context.Context, e *types.Entity) (types.ExportRecord, error) {
	if err := b.project(ctx, b.db, e); err != nil {
		return types.ExportRecord{}, err
	}
	activity, err := b.ledger.list(ctx, b.db, e.ID)
	if err != nil {
		return types.ExportRecord{}, err
	}
	for i := range activity {
		activity[i].EntryID, activity[i].EntityID = "", ""
	}

	payload := types.PayloadFor(e)
	payload.Activity = activity
	deps := types.Dependencies{Blocks: e.Blocks, BlockedBy: e.BlockedBy}
	rec := types.ExportRecord{SyncPayload: payload}
	if len(deps.Blocks) > 0 || len(deps.BlockedBy) > 0 {
		rec.Dependencies = &deps
	}
	return rec, nil
}

// Import syncs every record in a JSONL export, then replays the dependency
// lists through AddEdge. Malformed lines and records that fail to sync are
// counted and logged; they do not stop the import.
func (b *Backend) Import(ctx context.Context, path string) (ImportReport, error) {
	var report ImportReport
	var records []types.ExportRecord
	malformed, err := scanJSONL(path, func(line []byte) error {
		var rec types.ExportRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			report.Malformed++
			return nil
		}
		records = append(records, rec)
		return nil
	})
	report.Malformed += malformed
	if err != nil {
		return report, err
	}
	slices.SortStableFunc(records, func(a, b types.ExportRecord) int {
		return kindRank(a.Kind) - kindRank(b.Kind)
	})

	synced := make(map[string]bool, len(records))
	for _, rec := range records {
		if err := b.SyncEntity(ctx, rec.SyncPayload); err != nil {
			report.Failed++
			b.logger.Warn("import record failed", slog.String("entity_id", rec.ID), slog.Any("error", err))
			continue
		}
		synced[rec.ID] = true
		report.Synced++
	}

	for _, rec := range records {
		if rec.Dependencies == nil || !synced[rec.ID] {
			continue
		}
		edges := []struct {
			dir     types.Direction
			targets []string
		}{
			{types.Blocks, rec.Dependencies.Blocks},
			{types.BlockedBy, rec.Dependencies.BlockedBy},
		}
		for _, e := range edges {
			for _, target := range e.targets {
				if err := b.AddEdge(ctx, rec.ID, target, e.dir); err != nil {
					report.Failed++
					b.logger.Warn("import edge failed",
						slog.String("source", rec.ID),
						slog.String("target", target),
						slog.Any("error", err),
					)
					continue
				}
				report.Edges++
			}
		}
	}
	return report, nil
}

// kindRank orders kinds parents first.
func kindRank(k types.Kind) int {
	if i := slices.Index(types.Kinds, k); i >= 0 {
		return i
	}
	return len(types.Kinds)
}
