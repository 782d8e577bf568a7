package models

import (
	"errors"
	"sync/atomic"
)

// ErrNotFound is returned when a billboard is not found in the store.
var ErrNotFound = errors.New("billboard not found")

// BillboardStore provides thread-safe read access to the billboard snapshot
// served to requests, plus atomic replacement on reload.
type BillboardStore interface {
	// Read operations (hot path)
	GetBillboard(id int) *Billboard
	CandidatesForArea(area string) []Billboard
	GetAllBillboards() []Billboard

	// Write operations (reload path)
	ReloadAll(billboards []Billboard) error
	DeleteBillboard(id int) error
}

// billboardSnapshot is an immutable view of every billboard with its indexes.
type billboardSnapshot struct {
	billboards []Billboard
	byID       map[int]*Billboard
	// byArea holds approved and published billboards per placement area.
	byArea map[string][]Billboard
	// inHouse holds approved and published in-house billboards of every area.
	inHouse []Billboard
}

// InMemoryBillboardStore implements BillboardStore with atomic snapshot updates.
type InMemoryBillboardStore struct {
	data atomic.Pointer[billboardSnapshot]
}

// NewInMemoryBillboardStore creates an empty store.
func NewInMemoryBillboardStore() *InMemoryBillboardStore {
	s := &InMemoryBillboardStore{}
	s.data.Store(buildSnapshot(nil))
	return s
}

// GetBillboard returns the billboard with id, or nil.
func (s *InMemoryBillboardStore) GetBillboard(id int) *Billboard {
	if b, ok := s.data.Load().byID[id]; ok {
		return b
	}
	return nil
}

// CandidatesForArea returns the approved and published billboards worth
// evaluating for area. Hero inventory is reserved for in-house billboards, so
// home_hero candidates are every live in-house billboard.
func (s *InMemoryBillboardStore) CandidatesForArea(area string) []Billboard {
	data := s.data.Load()
	var src []Billboard
	if area == AreaHomeHero {
		src = data.inHouse
	} else {
		src = data.byArea[area]
	}
	// Return a copy to prevent external modification
	out := make([]Billboard, len(src))
	copy(out, src)
	return out
}

// GetAllBillboards returns every billboard in the snapshot, live or not.
func (s *InMemoryBillboardStore) GetAllBillboards() []Billboard {
	data := s.data.Load()
	out := make([]Billboard, len(data.billboards))
	copy(out, data.billboards)
	return out
}

// ReloadAll atomically replaces the snapshot.
func (s *InMemoryBillboardStore) ReloadAll(billboards []Billboard) error {
	s.data.Store(buildSnapshot(billboards))
	return nil
}

// DeleteBillboard removes a single billboard, e.g. after an unpublish notice.
func (s *InMemoryBillboardStore) DeleteBillboard(id int) error {
	current := s.data.Load()
	if _, ok := current.byID[id]; !ok {
		return ErrNotFound
	}
	remaining := make([]Billboard, 0, len(current.billboards)-1)
	for _, b := range current.billboards {
		if b.ID != id {
			remaining = append(remaining, b)
		}
	}
	s.data.Store(buildSnapshot(remaining))
	return nil
}

func buildSnapshot(billboards []Billboard) *billboardSnapshot {
	snap := &billboardSnapshot{
		billboards: billboards,
		byID:       make(map[int]*Billboard, len(billboards)),
		byArea:     make(map[string][]Billboard),
	}
	for i := range billboards {
		b := &billboards[i]
		snap.byID[b.ID] = b
		if !b.Approved || !b.Published {
			continue
		}
		snap.byArea[b.PlacementArea] = append(snap.byArea[b.PlacementArea], *b)
		if b.TypeOf == TypeInHouse {
			snap.inHouse = append(snap.inHouse, *b)
		}
	}
	return snap
}
