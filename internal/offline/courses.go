package offline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/learnsync/internal/model"
	"github.com/roach88/learnsync/internal/store"
)

// DownloadCourse stores a course for offline use. The "lessons" array of
// data, if any, is split out into the lessons collection; each lesson needs
// an "id", unique within the course. Downloading a course again replaces its
// lessons.
func (s *Service) DownloadCourse(ctx context.Context, id string, data model.Payload) error {
	rt, err := s.ready()
	if err != nil {
		return err
	}
	if id == "" {
		return fmt.Errorf("%w: course id is required", ErrInvalidCourse)
	}

	lessons, err := splitLessons(id, data["lessons"])
	if err != nil {
		return err
	}

	course := data.Clone()
	if course == nil {
		course = model.Payload{}
	}
	delete(course, "lessons")
	course["id"] = id
	course["lessonCount"] = len(lessons)
	course["downloadedAt"] = s.now().UTC().Format(time.RFC3339Nano)

	old, err := rt.store.GetAllByIndex(ctx, store.CollectionLessons, "courseId", store.Only(id))
	if err != nil {
		return fmt.Errorf("download course %s: %w", id, err)
	}
	for _, rec := range old {
		if err := rt.store.Delete(ctx, store.CollectionLessons, rec.Key); err != nil {
			return fmt.Errorf("download course %s: %w", id, err)
		}
	}

	for _, lesson := range lessons {
		if _, err := rt.store.Put(ctx, store.CollectionLessons, lesson); err != nil {
			return fmt.Errorf("download course %s: %w", id, err)
		}
	}
	if _, err := rt.store.Put(ctx, store.CollectionCourses, course); err != nil {
		return fmt.Errorf("download course %s: %w", id, err)
	}

	slog.Info("course downloaded", "course", id, "lessons", len(lessons))
	return nil
}

func splitLessons(courseID string, raw any) ([]model.Payload, error) {
	if raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: lessons must be an array, got %T", ErrInvalidCourse, raw)
	}

	out := make([]model.Payload, 0, len(list))
	for i, v := range list {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: lesson %d is not an object", ErrInvalidCourse, i)
		}
		lesson := model.Payload(m).Clone()
		id, _ := lesson["id"].(string)
		if id == "" {
			return nil, fmt.Errorf("%w: lesson %d has no id", ErrInvalidCourse, i)
		}
		lesson["key"] = lessonKey(courseID, id)
		lesson["courseId"] = courseID
		out = append(out, lesson)
	}
	return out, nil
}

// lessonKey scopes a lesson id to its course.
func lessonKey(courseID, lessonID string) string {
	return courseID + ":" + lessonID
}

// CheckCourseAvailability reports whether the course was downloaded.
func (s *Service) CheckCourseAvailability(ctx context.Context, id string) (bool, error) {
	rt, err := s.ready()
	if err != nil {
		return false, err
	}
	_, ok, err := rt.store.Get(ctx, store.CollectionCourses, id)
	if err != nil {
		return false, fmt.Errorf("check course %s: %w", id, err)
	}
	return ok, nil
}

// Course returns a downloaded course without its lessons.
func (s *Service) Course(ctx context.Context, id string) (model.Payload, bool, error) {
	rt, err := s.ready()
	if err != nil {
		return nil, false, err
	}
	c, ok, err := store.GetAs[model.Payload](ctx, rt.store, store.CollectionCourses, id)
	if err != nil {
		return nil, false, fmt.Errorf("get course %s: %w", id, err)
	}
	return c, ok, nil
}

// Lessons returns the lessons of a downloaded course in download order.
func (s *Service) Lessons(ctx context.Context, courseID string) ([]model.Payload, error) {
	rt, err := s.ready()
	if err != nil {
		return nil, err
	}
	lessons, err := store.AllByIndexAs[model.Payload](ctx, rt.store, store.CollectionLessons, "courseId", store.Only(courseID))
	if err != nil {
		return nil, fmt.Errorf("get lessons of %s: %w", courseID, err)
	}
	return lessons, nil
}
