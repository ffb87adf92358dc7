// Package memory keeps codes, configuration and failure counters in process.
// It honors the same conditional transitions as the SQL store and backs the
// "memory" store driver and the engine tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/shandysiswandi/onetime/internal/otp/entity"
	"github.com/shandysiswandi/onetime/internal/pkg/goerror"
)

type Store struct {
	mu       sync.RWMutex
	seq      int64
	codes    map[int64]entity.Code
	cfg      *entity.Config
	defaults entity.Config
	now      func() time.Time
}

// NewStore returns an empty store. defaults seed the configuration on first read.
func NewStore(defaults entity.Config, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		codes:    make(map[int64]entity.Code),
		defaults: defaults,
		now:      now,
	}
}

func (s *Store) Save(_ context.Context, code entity.Code) (entity.Code, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if code.ID == 0 {
		s.seq++
		code.ID = s.seq
	}
	if prev, ok := s.codes[code.ID]; ok && prev.Status != entity.StatusActive {
		return entity.Code{}, goerror.ErrConflict
	}
	s.codes[code.ID] = cloneCode(code)
	return code, nil
}

func (s *Store) FindActive(_ context.Context, subject, value, operationID string) (*entity.Code, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	match := lo.Filter(lo.Values(s.codes), func(c entity.Code, _ int) bool {
		return c.Status == entity.StatusActive && c.Subject == subject && c.Value == value && c.OperationID == operationID
	})
	if len(match) == 0 {
		return nil, goerror.ErrNotFound
	}

	latest := newest(match)
	return &latest, nil
}

func (s *Store) FindLatestActive(_ context.Context, subject string) (*entity.Code, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	match := lo.Filter(lo.Values(s.codes), func(c entity.Code, _ int) bool {
		return c.Status == entity.StatusActive && c.Subject == subject
	})
	if len(match) == 0 {
		return nil, goerror.ErrNotFound
	}

	latest := newest(match)
	return &latest, nil
}

func (s *Store) MarkUsed(_ context.Context, id int64, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.codes[id]
	if !ok || c.Status != entity.StatusActive || c.ExpiredAt(now) {
		return false, nil
	}

	c.Status = entity.StatusUsed
	c.UsedAt = &now
	s.codes[id] = c
	return true, nil
}

func (s *Store) MarkExpired(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.codes[id]
	if !ok || c.Status != entity.StatusActive {
		return false, nil
	}

	c.Status = entity.StatusExpired
	s.codes[id] = c
	return true, nil
}

func (s *Store) SweepExpired(ctx context.Context, now time.Time, batch int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, id := range s.sortedIDs() {
		if batch > 0 && n >= int64(batch) {
			break
		}
		if err := ctx.Err(); err != nil {
			return n, err
		}

		c := s.codes[id]
		if c.Status != entity.StatusActive || !now.After(c.ExpiresAt) {
			continue
		}
		c.Status = entity.StatusExpired
		s.codes[id] = c
		n++
	}
	return n, nil
}

func (s *Store) DeleteAllFor(_ context.Context, subject string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, c := range s.codes {
		if c.Subject == subject {
			delete(s.codes, id)
			n++
		}
	}
	return n, nil
}

// Get returns a copy of a stored code, mostly for assertions.
func (s *Store) Get(id int64) (entity.Code, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.codes[id]
	return cloneCode(c), ok
}

// All returns copies of every code ordered by ID.
func (s *Store) All() []entity.Code {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return lo.Map(s.sortedIDs(), func(id int64, _ int) entity.Code { return cloneCode(s.codes[id]) })
}

func (s *Store) GetConfig(context.Context) (entity.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ensureConfig(), nil
}

func (s *Store) UpdateConfig(_ context.Context, upd entity.ConfigUpdate) (entity.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := upd.Sanitize().Apply(s.ensureConfig())
	cfg.UpdatedAt = s.now().UTC()
	s.cfg = &cfg
	return cfg, nil
}

func (s *Store) ensureConfig() entity.Config {
	if s.cfg == nil {
		cfg := s.defaults
		cfg.UpdatedAt = s.now().UTC()
		s.cfg = &cfg
	}
	return *s.cfg
}

func (s *Store) sortedIDs() []int64 {
	ids := lo.Keys(s.codes)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func newest(codes []entity.Code) entity.Code {
	return cloneCode(lo.MaxBy(codes, func(a, b entity.Code) bool {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID > b.ID
		}
		return a.CreatedAt.After(b.CreatedAt)
	}))
}

func cloneCode(c entity.Code) entity.Code {
	if c.UsedAt != nil {
		t := *c.UsedAt
		c.UsedAt = &t
	}
	return c
}
