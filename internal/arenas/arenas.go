// Package arenas manages the operator-defined arena documents.
package arenas

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oggyb/arena-signals/internal/db"
	"github.com/oggyb/arena-signals/internal/store"
)

var (
	ErrNotFound         = errors.New("arena not found")
	ErrAlreadyExists    = errors.New("arena already exists")
	ErrInvalidTimeInput = errors.New("invalid time input")
	ErrInvalidArena     = errors.New("invalid arena")
)

// Input is the operator form. Times are RFC3339 strings.
type Input struct {
	Name      string
	Latitude  float64
	Longitude float64
	Radius    float64
	StartTime string
	EndTime   string
	IsActive  bool
}

// ParseWindow parses an RFC3339 activation window. The end must not be
// before the start.
func ParseWindow(start, end string) (time.Time, time.Time, error) {
	s, err := time.Parse(time.RFC3339, strings.TrimSpace(start))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start %q", ErrInvalidTimeInput, start)
	}
	e, err := time.Parse(time.RFC3339, strings.TrimSpace(end))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end %q", ErrInvalidTimeInput, end)
	}
	if e.Before(s) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end before start", ErrInvalidTimeInput)
	}
	return s.UTC(), e.UTC(), nil
}

func (in Input) apply(a *db.Arena) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidArena)
	}
	if math.IsNaN(in.Radius) || in.Radius <= 0 {
		return fmt.Errorf("%w: radius must be positive", ErrInvalidArena)
	}
	if math.Abs(in.Latitude) > 90 || math.Abs(in.Longitude) > 180 {
		return fmt.Errorf("%w: coordinates out of range", ErrInvalidArena)
	}
	start, end, err := ParseWindow(in.StartTime, in.EndTime)
	if err != nil {
		return err
	}

	a.Name = name
	a.Latitude = in.Latitude
	a.Longitude = in.Longitude
	a.Radius = in.Radius
	a.StartTime = start
	a.EndTime = end
	a.IsActive = in.IsActive
	return nil
}

type Service struct {
	store *store.Store
}

func New(st *store.Store) *Service {
	return &Service{store: st}
}

// Create stores a new arena. An empty id is replaced by a random one.
func (s *Service) Create(ctx context.Context, id string, in Input) (*db.Arena, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if err := db.ValidateKeyPart(id); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArena, err)
	}

	var out *db.Arena
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx *store.Tx) error {
		a := &db.Arena{Doc: db.Doc{ID: id}}
		found, err := tx.Get(ctx, a)
		if err != nil {
			return err
		}
		if found {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, id)
		}
		if err := in.apply(a); err != nil {
			return err
		}
		a.CreatedAt = tx.Now()
		a.UpdatedAt = tx.Now()
		out = a
		return tx.Set(a)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Update replaces every editable field of an existing arena.
func (s *Service) Update(ctx context.Context, id string, in Input) (*db.Arena, error) {
	var out *db.Arena
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx *store.Tx) error {
		a := &db.Arena{Doc: db.Doc{ID: id}}
		found, err := tx.Get(ctx, a)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if err := in.apply(a); err != nil {
			return err
		}
		a.UpdatedAt = tx.Now()
		out = a
		return tx.Set(a)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes the arena. Signals left behind are purged by the cleanup job.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.RunTransaction(ctx, func(ctx context.Context, tx *store.Tx) error {
		a := &db.Arena{Doc: db.Doc{ID: id}}
		found, err := tx.Get(ctx, a)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return tx.Delete(a)
	})
}

func (s *Service) Get(ctx context.Context, id string) (*db.Arena, error) {
	var a db.Arena
	err := s.store.DB().WithContext(ctx).Take(&a, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// List returns every arena ordered by window start.
func (s *Service) List(ctx context.Context) ([]db.Arena, error) {
	var out []db.Arena
	err := s.store.DB().WithContext(ctx).Order("start_time ASC, id ASC").Find(&out).Error
	return out, err
}
