// Package memory is an in-process identifier and range store. Every method
// holds the store mutex for one operation only, which gives the same
// single-document atomicity the persistent stores provide.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cveregistry/internal/cveid/models"
	"cveregistry/pkg/platform/sentinel"
)

// InMemoryStore implements ports.RangeStore and ports.IdentifierStore.
type InMemoryStore struct {
	mu       sync.Mutex
	ranges   map[int]models.YearRange
	ids      map[string]*models.Identifier
	byYear   map[int]map[string]struct{} // AVAILABLE tokens per year
	reserved map[string]int              // RESERVED count per owning org
}

func New() *InMemoryStore {
	return &InMemoryStore{
		ranges:   make(map[int]models.YearRange),
		ids:      make(map[string]*models.Identifier),
		byYear:   make(map[int]map[string]struct{}),
		reserved: make(map[string]int),
	}
}

func (s *InMemoryStore) FindRange(_ context.Context, year int) (*models.YearRange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	yr, ok := s.ranges[year]
	if !ok {
		return nil, fmt.Errorf("range %d: %w", year, sentinel.ErrNotFound)
	}
	return &yr, nil
}

func (s *InMemoryStore) CreateRange(_ context.Context, yr *models.YearRange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ranges[yr.Year]; ok {
		return fmt.Errorf("range %d: %w", yr.Year, sentinel.ErrConflict)
	}
	s.ranges[yr.Year] = *yr
	return nil
}

func (s *InMemoryStore) ExtendTop(_ context.Context, year int, increment int64) (models.TopUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	yr, ok := s.ranges[year]
	if !ok {
		return models.TopUpdate{}, fmt.Errorf("range %d: %w", year, sentinel.ErrNotFound)
	}
	g := &yr.General
	upd := models.TopUpdate{PrevTopID: g.TopID, NewTopID: g.TopID, End: g.End}
	if increment > 0 && g.TopID < g.End {
		g.TopID = min(g.TopID+increment, g.End)
		upd.NewTopID = g.TopID
		s.ranges[year] = yr
	}
	return upd, nil
}

func (s *InMemoryStore) InsertAvailable(_ context.Context, ids []models.Identifier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if _, ok := s.ids[id.ID]; ok {
			return fmt.Errorf("identifier %s: %w", id.ID, sentinel.ErrConflict)
		}
	}
	for _, id := range ids {
		doc := id
		s.ids[id.ID] = &doc
		s.index(&doc)
	}
	return nil
}

func (s *InMemoryStore) FindAvailable(_ context.Context, year int, limit int) ([]models.Identifier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Identifier, 0, min(limit, len(s.byYear[year])))
	for token := range s.byYear[year] {
		if len(out) >= limit {
			break
		}
		out = append(out, *s.ids[token])
	}
	return out, nil
}

func (s *InMemoryStore) ClaimAvailable(_ context.Context, id string, owningOrg string, requester models.RequestedBy, at time.Time) (*models.Identifier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.ids[id]
	if !ok || doc.State != models.StateAvailable {
		return nil, nil
	}
	delete(s.byYear[doc.Year], id)
	doc.State = models.StateReserved
	doc.OwningOrg = owningOrg
	doc.RequestedBy = requester
	doc.ReservedAt = at
	s.reserved[owningOrg]++
	claimed := *doc
	return &claimed, nil
}

func (s *InMemoryStore) CountReserved(_ context.Context, owningOrg string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reserved[owningOrg], nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id string) (*models.Identifier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.ids[id]
	if !ok {
		return nil, fmt.Errorf("identifier %s: %w", id, sentinel.ErrNotFound)
	}
	out := *doc
	return &out, nil
}

// Put stores a document in any state, replacing an existing one. Used by
// seeding and tests.
func (s *InMemoryStore) Put(id models.Identifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.ids[id.ID]; ok {
		s.unindex(old)
	}
	doc := id
	s.ids[id.ID] = &doc
	s.index(&doc)
}

func (s *InMemoryStore) index(doc *models.Identifier) {
	switch doc.State {
	case models.StateAvailable:
		if s.byYear[doc.Year] == nil {
			s.byYear[doc.Year] = make(map[string]struct{})
		}
		s.byYear[doc.Year][doc.ID] = struct{}{}
	case models.StateReserved:
		s.reserved[doc.OwningOrg]++
	}
}

func (s *InMemoryStore) unindex(doc *models.Identifier) {
	switch doc.State {
	case models.StateAvailable:
		delete(s.byYear[doc.Year], doc.ID)
	case models.StateReserved:
		s.reserved[doc.OwningOrg]--
	}
}
