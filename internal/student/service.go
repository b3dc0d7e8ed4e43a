package student

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nerrad567/gatekeeper-core/internal/notify"
)

// Logger defines the logging interface used by the Service.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Notifier receives an event for every committed mutation. Broadcast must
// not block on slow listeners; *notify.Hub satisfies it.
type Notifier interface {
	Broadcast(ev notify.ChangeEvent) int
}

// Cache is an optional read-through cache for single-record lookups.
// A miss is reported as (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, id string) (*Student, bool, error)
	Set(ctx context.Context, s *Student) error
	Delete(ctx context.Context, id string) error
}

// Recorder receives one call per Service operation.
type Recorder interface {
	RecordOperation(operation, outcome string, duration time.Duration)
}

// Service is the registry entry point used by the transport layer.
//
// Each operation validates its input, calls the repository, and after a
// successful mutation broadcasts a ChangeEvent. The broadcast is fire and
// forget; its outcome never changes the operation result.
//
// Mutations are serialised from the store call through the broadcast, so
// observers see events in commit order. A read-through cache fill holds the
// read side of the same lock and cannot overwrite a newer invalidation.
//
// All public methods are safe for concurrent use once configured.
type Service struct {
	// writeMu orders commit, invalidation and broadcast.
	writeMu sync.RWMutex

	repo      Repository
	notifier  Notifier
	cache     Cache
	recorders []Recorder
	logger    Logger
}

// NewService creates a Service. notifier may be nil, in which case
// mutations are not announced.
func NewService(repo Repository, notifier Notifier) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the service.
func (s *Service) SetLogger(logger Logger) {
	s.logger = logger
}

// SetCache enables read-through caching for Get.
func (s *Service) SetCache(c Cache) {
	s.cache = c
}

// AddRecorder registers a sink for per-operation outcomes and latency.
// Call before the service starts handling requests.
func (s *Service) AddRecorder(r Recorder) {
	s.recorders = append(s.recorders, r)
}

// Create validates and stores a new record, then broadcasts a created
// event. The returned record carries the store timestamps.
func (s *Service) Create(ctx context.Context, in Student) (_ *Student, err error) {
	defer s.observe(OpCreate, time.Now(), &err)

	if err := ValidateStudent(&in); err != nil {
		return nil, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	rec := in
	if err := s.repo.Create(ctx, &rec); err != nil {
		return nil, s.fail(OpCreate, in.StudentID, err)
	}

	s.invalidate(ctx, rec.StudentID)
	s.publish(notify.Created(rec.StudentID, rec.Name))

	s.logger.Info("student created", "student_id", rec.StudentID)
	return &rec, nil
}

// Get returns one record.
func (s *Service) Get(ctx context.Context, id string) (_ *Student, err error) {
	defer s.observe(OpGet, time.Now(), &err)

	if err := ValidateID(id); err != nil {
		return nil, err
	}

	if s.cache != nil {
		cached, ok, cacheErr := s.cache.Get(ctx, id)
		switch {
		case cacheErr != nil:
			s.logger.Warn("cache read failed", "student_id", id, "error", cacheErr)
		case ok:
			return cached, nil
		}
	}

	if s.cache == nil {
		rec, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, s.fail(OpGet, id, err)
		}
		return rec, nil
	}

	s.writeMu.RLock()
	defer s.writeMu.RUnlock()

	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.fail(OpGet, id, err)
	}
	if cacheErr := s.cache.Set(ctx, rec); cacheErr != nil {
		s.logger.Warn("cache write failed", "student_id", id, "error", cacheErr)
	}
	return rec, nil
}

// List returns every record ordered by student_id.
func (s *Service) List(ctx context.Context) (_ []Student, err error) {
	defer s.observe(OpList, time.Now(), &err)

	students, err := s.repo.List(ctx)
	if err != nil {
		return nil, s.fail(OpList, "", err)
	}
	return students, nil
}

// Update applies a partial update and broadcasts an updated event carrying
// the record's current name.
func (s *Service) Update(ctx context.Context, id string, u Update) (_ *Student, err error) {
	defer s.observe(OpUpdate, time.Now(), &err)

	if err := ValidateID(id); err != nil {
		return nil, err
	}
	if err := ValidateUpdate(u); err != nil {
		return nil, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	rec, err := s.repo.Update(ctx, id, u)
	if err != nil {
		return nil, s.fail(OpUpdate, id, err)
	}

	s.invalidate(ctx, id)
	s.publish(notify.Updated(rec.StudentID, rec.Name))

	s.logger.Info("student updated", "student_id", id)
	return rec, nil
}

// Delete removes a record and broadcasts a deleted event.
func (s *Service) Delete(ctx context.Context, id string) (err error) {
	defer s.observe(OpDelete, time.Now(), &err)

	if err := ValidateID(id); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.repo.Delete(ctx, id); err != nil {
		return s.fail(OpDelete, id, err)
	}

	s.invalidate(ctx, id)
	s.publish(notify.Deleted(id))

	s.logger.Info("student deleted", "student_id", id)
	return nil
}

// fail classifies a repository error and logs server-side failures.
func (s *Service) fail(op, id string, err error) error {
	err = classify(op, id, err)
	if errors.Is(err, ErrTransient) {
		s.logger.Error("store operation failed", "operation", op, "student_id", id, "error", err)
	} else {
		s.logger.Debug("store operation rejected", "operation", op, "student_id", id, "error", err)
	}
	return err
}

func (s *Service) publish(ev notify.ChangeEvent) {
	if s.notifier == nil {
		return
	}
	delivered := s.notifier.Broadcast(ev)
	s.logger.Debug("change broadcast", "kind", string(ev.Kind), "student_id", ev.StudentID, "delivered", delivered)
}

func (s *Service) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, id); err != nil {
		s.logger.Warn("cache invalidation failed", "student_id", id, "error", err)
	}
}

func (s *Service) observe(op string, start time.Time, errp *error) {
	if len(s.recorders) == 0 {
		return
	}
	outcome := Outcome(*errp)
	elapsed := time.Since(start)
	for _, r := range s.recorders {
		r.RecordOperation(op, outcome, elapsed)
	}
}
