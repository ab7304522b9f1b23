package offline

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/roach88/learnsync/internal/model"
	"github.com/roach88/learnsync/internal/store"
)

// Progress is a learner's completion of one course module.
type Progress struct {
	Key       string    `json:"key"`
	CourseID  string    `json:"courseId"`
	ModuleID  string    `json:"moduleId"`
	Progress  float64   `json:"progress"`
	Synced    bool      `json:"synced"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// progressKey is the primary key of a progress record and the record key of
// its sync items.
func progressKey(courseID, moduleID string) string {
	return courseID + ":" + moduleID
}

// SaveProgress records progress (0 to 100) for a module. Unless synced is
// true, a progress item is queued for the remote.
func (s *Service) SaveProgress(ctx context.Context, courseID, moduleID string, progress float64, synced bool) error {
	rt, err := s.ready()
	if err != nil {
		return err
	}
	if courseID == "" || moduleID == "" {
		return fmt.Errorf("%w: course and module ids are required", ErrInvalidProgress)
	}
	if math.IsNaN(progress) || progress < 0 || progress > 100 {
		return fmt.Errorf("%w: %v is outside [0, 100]", ErrInvalidProgress, progress)
	}

	p := Progress{
		Key:       progressKey(courseID, moduleID),
		CourseID:  courseID,
		ModuleID:  moduleID,
		Progress:  progress,
		Synced:    synced,
		UpdatedAt: s.now().UTC(),
	}
	if _, err := rt.store.Put(ctx, store.CollectionProgress, p); err != nil {
		return fmt.Errorf("save progress %s: %w", p.Key, err)
	}
	if synced {
		return nil
	}

	if _, err := rt.queue.Add(ctx, model.TypeProgress, p.payload()); err != nil {
		return fmt.Errorf("save progress %s: %w", p.Key, err)
	}
	return nil
}

// payload is the wire form of p. The "id" field makes every update of one
// module address the same remote record.
func (p Progress) payload() model.Payload {
	return model.Payload{
		"id":        p.Key,
		"courseId":  p.CourseID,
		"moduleId":  p.ModuleID,
		"progress":  p.Progress,
		"updatedAt": p.UpdatedAt.Format(time.RFC3339Nano),
	}
}

// GetProgress returns the progress of one module.
func (s *Service) GetProgress(ctx context.Context, courseID, moduleID string) (Progress, bool, error) {
	rt, err := s.ready()
	if err != nil {
		return Progress{}, false, err
	}
	key := progressKey(courseID, moduleID)
	p, ok, err := store.GetAs[Progress](ctx, rt.store, store.CollectionProgress, key)
	if err != nil {
		return Progress{}, false, fmt.Errorf("get progress %s: %w", key, err)
	}
	return p, ok, nil
}

// GetCourseProgress returns the progress of every module of a course, in
// the order modules were first saved.
func (s *Service) GetCourseProgress(ctx context.Context, courseID string) ([]Progress, error) {
	rt, err := s.ready()
	if err != nil {
		return nil, err
	}
	out, err := store.AllByIndexAs[Progress](ctx, rt.store, store.CollectionProgress, "courseId", store.Only(courseID))
	if err != nil {
		return nil, fmt.Errorf("get course progress %s: %w", courseID, err)
	}
	return out, nil
}

// applyLocal writes a conflict winner into the local cache. Only progress
// has a local cache; other types need nothing.
func applyLocal(ctx context.Context, st *store.Store, now func() time.Time, item model.SyncItem) error {
	if item.Type != model.TypeProgress {
		return nil
	}

	courseID, _ := item.Payload["courseId"].(string)
	moduleID, _ := item.Payload["moduleId"].(string)
	value, ok := item.Payload["progress"].(float64)
	if courseID == "" || moduleID == "" || !ok {
		return fmt.Errorf("%w: item %s lacks courseId, moduleId or progress", ErrInvalidProgress, item.ID)
	}

	p := Progress{
		Key:       progressKey(courseID, moduleID),
		CourseID:  courseID,
		ModuleID:  moduleID,
		Progress:  value,
		Synced:    true,
		UpdatedAt: now().UTC(),
	}
	if _, err := st.Put(ctx, store.CollectionProgress, p); err != nil {
		return fmt.Errorf("apply progress %s: %w", p.Key, err)
	}
	return nil
}

// markSynced flags the progress records whose queued items left the queue.
// before maps the item ids of the pre-cycle snapshot to progress keys.
func markSynced(ctx context.Context, rt *components, before map[string]string) error {
	if len(before) == 0 {
		return nil
	}

	items, err := rt.queue.List(ctx)
	if err != nil {
		return err
	}
	stillQueued := make(map[string]bool, len(items))
	for _, it := range items {
		if it.Type == model.TypeProgress {
			stillQueued[it.RecordKey()] = true
		}
	}

	done := make(map[string]bool)
	for id, key := range before {
		if _, ok, err := rt.queue.Get(ctx, id); err != nil {
			return err
		} else if !ok && !stillQueued[key] {
			done[key] = true
		}
	}

	for key := range done {
		p, ok, err := store.GetAs[Progress](ctx, rt.store, store.CollectionProgress, key)
		if err != nil {
			return err
		}
		if !ok || p.Synced {
			continue
		}
		p.Synced = true
		if _, err := rt.store.Put(ctx, store.CollectionProgress, p); err != nil {
			return err
		}
	}
	return nil
}
