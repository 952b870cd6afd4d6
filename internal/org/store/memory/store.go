package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"cveregistry/internal/org/models"
	"cveregistry/pkg/platform/sentinel"
)

// InMemoryStore keeps organizations and users in maps guarded by one mutex.
type InMemoryStore struct {
	mu          sync.RWMutex
	orgs        map[uuid.UUID]*models.Organization
	byShortName map[string]uuid.UUID
	users       map[uuid.UUID]map[string]*models.User // org UUID -> username -> user
}

func New() *InMemoryStore {
	return &InMemoryStore{
		orgs:        make(map[uuid.UUID]*models.Organization),
		byShortName: make(map[string]uuid.UUID),
		users:       make(map[uuid.UUID]map[string]*models.User),
	}
}

// RunInTx runs fn directly; each call already holds the store mutex.
func (s *InMemoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func key(shortName string) string {
	return strings.ToLower(shortName)
}

func (s *InMemoryStore) CreateOrg(_ context.Context, org *models.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byShortName[key(org.ShortName)]; ok {
		return fmt.Errorf("organization %s: %w", org.ShortName, sentinel.ErrConflict)
	}
	if _, ok := s.orgs[org.UUID]; ok {
		return fmt.Errorf("organization %s: %w", org.UUID, sentinel.ErrConflict)
	}
	cp := *org
	s.orgs[org.UUID] = &cp
	s.byShortName[key(org.ShortName)] = org.UUID
	return nil
}

func (s *InMemoryStore) FindByShortName(_ context.Context, shortName string) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byShortName[key(shortName)]
	if !ok {
		return nil, fmt.Errorf("organization %s: %w", shortName, sentinel.ErrNotFound)
	}
	cp := *s.orgs[id]
	return &cp, nil
}

func (s *InMemoryStore) FindByUUID(_ context.Context, id uuid.UUID) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	org, ok := s.orgs[id]
	if !ok {
		return nil, fmt.Errorf("organization %s: %w", id, sentinel.ErrNotFound)
	}
	cp := *org
	return &cp, nil
}

func (s *InMemoryStore) UpdateQuota(_ context.Context, shortName string, idQuota int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byShortName[key(shortName)]
	if !ok {
		return fmt.Errorf("organization %s: %w", shortName, sentinel.ErrNotFound)
	}
	s.orgs[id].IDQuota = idQuota
	return nil
}

func (s *InMemoryStore) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orgs[user.OrgUUID]; !ok {
		return fmt.Errorf("organization %s: %w", user.OrgUUID, sentinel.ErrNotFound)
	}
	byName := s.users[user.OrgUUID]
	if byName == nil {
		byName = make(map[string]*models.User)
		s.users[user.OrgUUID] = byName
	}
	if _, ok := byName[user.Username]; ok {
		return fmt.Errorf("user %s: %w", user.Username, sentinel.ErrConflict)
	}
	cp := *user
	byName[user.Username] = &cp
	return nil
}

func (s *InMemoryStore) FindUser(_ context.Context, orgUUID uuid.UUID, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[orgUUID][username]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", username, sentinel.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (s *InMemoryStore) FindUserByUUID(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, byName := range s.users {
		for _, u := range byName {
			if u.UUID == id {
				cp := *u
				return &cp, nil
			}
		}
	}
	return nil, fmt.Errorf("user %s: %w", id, sentinel.ErrNotFound)
}
