package admin

import (
	"time"

	"github.com/oggyb/arena-signals/internal/arenas"
	"github.com/oggyb/arena-signals/internal/db"
)

// Arena times travel as RFC3339 strings, the same format the operator form uses.
type Arena struct {
	ID        string  `cbor:"id"`
	Name      string  `cbor:"name"`
	Latitude  float64 `cbor:"latitude"`
	Longitude float64 `cbor:"longitude"`
	Radius    float64 `cbor:"radius"`
	StartTime string  `cbor:"start_time"`
	EndTime   string  `cbor:"end_time"`
	IsActive  bool    `cbor:"is_active"`
	Version   int64   `cbor:"version"`
}

type ArenaInput struct {
	Name      string  `cbor:"name"`
	Latitude  float64 `cbor:"latitude"`
	Longitude float64 `cbor:"longitude"`
	Radius    float64 `cbor:"radius"`
	StartTime string  `cbor:"start_time"`
	EndTime   string  `cbor:"end_time"`
	IsActive  bool    `cbor:"is_active"`
}

type CreateArenaRequest struct {
	ArenaID string     `cbor:"arena_id,omitempty"`
	Arena   ArenaInput `cbor:"arena"`
}

type UpdateArenaRequest struct {
	ArenaID string     `cbor:"arena_id"`
	Arena   ArenaInput `cbor:"arena"`
}

type ArenaResponse struct {
	Arena Arena `cbor:"arena"`
}

type ArenaIDRequest struct {
	ArenaID string `cbor:"arena_id"`
}

type ListArenasRequest struct{}

type ListArenasResponse struct {
	Arenas []Arena `cbor:"arenas"`
}

type Empty struct{}

func (in ArenaInput) domain() arenas.Input {
	return arenas.Input{
		Name:      in.Name,
		Latitude:  in.Latitude,
		Longitude: in.Longitude,
		Radius:    in.Radius,
		StartTime: in.StartTime,
		EndTime:   in.EndTime,
		IsActive:  in.IsActive,
	}
}

func toArena(a *db.Arena) Arena {
	return Arena{
		ID:        a.ID,
		Name:      a.Name,
		Latitude:  a.Latitude,
		Longitude: a.Longitude,
		Radius:    a.Radius,
		StartTime: a.StartTime.UTC().Format(time.RFC3339),
		EndTime:   a.EndTime.UTC().Format(time.RFC3339),
		IsActive:  a.IsActive,
		Version:   a.Version,
	}
}

func toArenas(in []db.Arena) []Arena {
	out := make([]Arena, 0, len(in))
	for i := range in {
		out = append(out, toArena(&in[i]))
	}
	return out
}
