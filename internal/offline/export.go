package offline

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/roach88/learnsync/internal/model"
)

//go:embed export.cue
var exportSchema string

// Export is the portable snapshot of sync state.
type Export struct {
	Queue      []model.SyncItem   `json:"queue"`
	History    []model.SyncResult `json:"history"`
	Conflicts  []model.Conflict   `json:"conflicts"`
	ExportedAt time.Time          `json:"exportedAt"`
}

// ExportSyncData returns the queue, history (most recent first) and
// conflict log as canonical JSON.
func (s *Service) ExportSyncData(ctx context.Context) ([]byte, error) {
	rt, err := s.ready()
	if err != nil {
		return nil, err
	}

	doc := Export{
		Queue:      []model.SyncItem{},
		History:    []model.SyncResult{},
		Conflicts:  []model.Conflict{},
		ExportedAt: s.now().UTC(),
	}

	items, err := rt.queue.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("export sync data: %w", err)
	}
	doc.Queue = append(doc.Queue, items...)

	history, err := rt.engine.History(ctx)
	if err != nil {
		return nil, fmt.Errorf("export sync data: %w", err)
	}
	doc.History = append(doc.History, history...)

	conflicts, err := rt.resolver.List(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("export sync data: %w", err)
	}
	doc.Conflicts = append(doc.Conflicts, conflicts...)

	out, err := model.MarshalCanonical(doc)
	if err != nil {
		return nil, fmt.Errorf("export sync data: %w", err)
	}
	return out, nil
}

// ImportSyncData validates data against the export schema and then replaces
// the queue, history and conflict log with its contents. It is not a merge:
// whatever was there before is gone.
func (s *Service) ImportSyncData(ctx context.Context, data []byte) error {
	rt, err := s.ready()
	if err != nil {
		return err
	}

	if err := ValidateExport(data); err != nil {
		return err
	}

	var doc Export
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidExport, err)
	}

	if err := rt.queue.Replace(ctx, doc.Queue); err != nil {
		return fmt.Errorf("import sync data: %w", err)
	}
	if err := rt.engine.ReplaceHistory(ctx, doc.History); err != nil {
		return fmt.Errorf("import sync data: %w", err)
	}
	if err := rt.resolver.Replace(ctx, doc.Conflicts); err != nil {
		return fmt.Errorf("import sync data: %w", err)
	}

	slog.Info("sync data imported",
		"queue", len(doc.Queue),
		"history", len(doc.History),
		"conflicts", len(doc.Conflicts),
		"exported_at", doc.ExportedAt,
	)
	return nil
}

// ValidateExport checks data against the embedded export schema.
func ValidateExport(data []byte) error {
	cctx := cuecontext.New()

	schema := cctx.CompileString(exportSchema, cue.Filename("export.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile export schema: %w", err)
	}

	doc := cctx.CompileBytes(data, cue.Filename("import.json"))
	if err := doc.Err(); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidExport, cueerrors.Details(err, nil))
	}

	v := schema.LookupPath(cue.ParsePath("#Export")).Unify(doc)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidExport, cueerrors.Details(err, nil))
	}
	return nil
}
