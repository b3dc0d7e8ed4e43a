package cache

import (
	"context"
	"errors"

	"github.com/nerrad567/gatekeeper-core/internal/student"
)

// StudentCache adapts Cache to the student.Cache interface.
type StudentCache struct {
	cache *Cache
}

// NewStudentCache creates a StudentCache on top of c.
func NewStudentCache(c *Cache) *StudentCache {
	return &StudentCache{cache: c}
}

// Get returns the cached record, or ok=false on a miss.
func (s *StudentCache) Get(ctx context.Context, id string) (*student.Student, bool, error) {
	var st student.Student
	err := s.cache.Get(ctx, StudentKey(id), &st)
	switch {
	case errors.Is(err, ErrCacheMiss):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}
	return &st, true, nil
}

// Set caches a record under its student_id.
func (s *StudentCache) Set(ctx context.Context, st *student.Student) error {
	if st == nil {
		return nil
	}
	return s.cache.Set(ctx, StudentKey(st.StudentID), st)
}

// Delete drops the cached record for id.
func (s *StudentCache) Delete(ctx context.Context, id string) error {
	return s.cache.Delete(ctx, StudentKey(id))
}

var _ student.Cache = (*StudentCache)(nil)
