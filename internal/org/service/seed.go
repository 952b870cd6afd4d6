package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"

	"cveregistry/internal/org/models"
	"cveregistry/pkg/platform/sentinel"
	strs "cveregistry/pkg/platform/strings"
	"cveregistry/pkg/requestcontext"
)

// seedNamespace derives stable UUIDs for seeded organizations and users so
// that re-seeding a persistent store finds the same identities.
var seedNamespace = uuid.MustParse("5b0c9d0e-7f6e-4c55-9b1f-0c2b8a1e6d11")

// Seed describes organizations, users and years to provision at startup.
type Seed struct {
	Orgs  []SeedOrg `json:"orgs"`
	Years []int     `json:"years"`
}

type SeedOrg struct {
	ShortName string   `json:"short_name"`
	Name      string   `json:"name"`
	Roles     []string `json:"roles"`
	IDQuota   *int     `json:"id_quota"`
	Users     []string `json:"users"`
}

// LoadSeed reads a JSON seed file.
func LoadSeed(path string) (*Seed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	return &seed, nil
}

// ApplySeed creates the seeded organizations and users. Entries that already
// exist are left untouched. Each organization and its users are written in
// one transaction.
func (s *Service) ApplySeed(ctx context.Context, seed *Seed) error {
	for _, so := range seed.Orgs {
		if err := s.store.RunInTx(ctx, func(ctx context.Context) error {
			return s.seedOrg(ctx, so)
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) seedOrg(ctx context.Context, so SeedOrg) error {
	now := requestcontext.Now(ctx)
	org, err := s.store.FindByShortName(ctx, so.ShortName)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		quota := s.defaultIDQuota
		if so.IDQuota != nil {
			quota = *so.IDQuota
		}
		roleNames := strs.DedupeAndTrimUpper(so.Roles)
		roles := make([]models.Role, len(roleNames))
		for i, r := range roleNames {
			roles[i] = models.Role(r)
		}
		orgID := uuid.NewSHA1(seedNamespace, []byte("org:"+so.ShortName))
		org, err = models.NewOrganization(orgID, so.ShortName, so.Name, roles, quota, now)
		if err != nil {
			return fmt.Errorf("seed organization %s: %w", so.ShortName, err)
		}
		if err := s.store.CreateOrg(ctx, org); err != nil {
			return fmt.Errorf("seed organization %s: %w", so.ShortName, err)
		}
	case err != nil:
		return fmt.Errorf("seed organization %s: %w", so.ShortName, err)
	}

	users := strs.DedupeAndTrim(so.Users)
	for _, username := range users {
		_, err := s.store.FindUser(ctx, org.UUID, username)
		if err == nil {
			continue
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return fmt.Errorf("seed user %s/%s: %w", so.ShortName, username, err)
		}
		userID := uuid.NewSHA1(seedNamespace, []byte("user:"+so.ShortName+"/"+username))
		user, err := models.NewUser(userID, org.UUID, username, now)
		if err != nil {
			return fmt.Errorf("seed user %s/%s: %w", so.ShortName, username, err)
		}
		if err := s.store.CreateUser(ctx, user); err != nil {
			return fmt.Errorf("seed user %s/%s: %w", so.ShortName, username, err)
		}
	}
	s.logger.InfoContext(ctx, "organization seeded",
		"short_name", org.ShortName,
		"roles", org.RoleNames(),
		"id_quota", org.IDQuota,
		"users", len(users),
	)
	return nil
}
