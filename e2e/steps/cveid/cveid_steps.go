package cveid

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	ActAs(org, user string)
	Caller() (org, user string)
	Do(ctx context.Context, method, path string) error
	Send(ctx context.Context, method, path, org, user string) (int, []byte, http.Header, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
}

// RegisterSteps registers reservation and quota step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &cveidSteps{tc: tc}

	ctx.Step(`^"([^"]*)" has (\d+) identifiers? of quota left$`, steps.quotaLeft)
	ctx.Step(`^I reserve (\d+) identifiers? for "([^"]*)" in (\d{4})$`, steps.reserve)
	ctx.Step(`^(\d+) concurrent requests each reserve (\d+) identifiers? for "([^"]*)" in (\d{4})$`, steps.reserveConcurrently)

	ctx.Step(`^the response should contain (\d+) identifiers?$`, steps.responseShouldContain)
	ctx.Step(`^every reserved identifier should be owned by "([^"]*)"$`, steps.everyOwnedBy)
	ctx.Step(`^every concurrent request should succeed$`, steps.everyConcurrentSucceeded)
	ctx.Step(`^no identifier should be issued twice$`, steps.noDuplicates)
}

type identifier struct {
	ID        string `json:"cve_id"`
	State     string `json:"state"`
	OwningCNA string `json:"owning_cna"`
}

type reservation struct {
	CVEIDs []identifier `json:"cve_ids"`
}

type cveidSteps struct {
	tc TestContext

	mu       sync.Mutex
	reserved []identifier
	statuses []int
}

// quotaLeft lifts the organization's quota so exactly n more identifiers
// fit, using the seeded secretariat account.
func (s *cveidSteps) quotaLeft(ctx context.Context, shortName string, n int) error {
	status, body, _, err := s.tc.Send(ctx, http.MethodGet, "/api/org/"+shortName+"/id_quota", "mitre", "admin")
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("read quota: status %d: %s", status, body)
	}
	var q struct {
		TotalReserved int `json:"total_reserved"`
	}
	if err := json.Unmarshal(body, &q); err != nil {
		return fmt.Errorf("decode quota: %w", err)
	}
	path := fmt.Sprintf("/api/org/%s/id_quota?id_quota=%d", shortName, q.TotalReserved+n)
	status, body, _, err = s.tc.Send(ctx, http.MethodPut, path, "mitre", "admin")
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("set quota: status %d: %s", status, body)
	}
	return nil
}

func reservePath(amount int, shortName string, year int) string {
	return "/api/cve-id?amount=" + strconv.Itoa(amount) +
		"&cve_year=" + strconv.Itoa(year) +
		"&short_name=" + shortName
}

func (s *cveidSteps) reserve(ctx context.Context, amount int, shortName string, year int) error {
	if err := s.tc.Do(ctx, http.MethodPost, reservePath(amount, shortName, year)); err != nil {
		return err
	}
	if status := s.tc.GetLastResponseStatus(); status == http.StatusOK || status == http.StatusPartialContent {
		var res reservation
		if err := json.Unmarshal(s.tc.GetLastResponseBody(), &res); err != nil {
			return fmt.Errorf("decode reservation: %w", err)
		}
		s.reserved = append(s.reserved, res.CVEIDs...)
	}
	return nil
}

func (s *cveidSteps) reserveConcurrently(ctx context.Context, requests, amount int, shortName string, year int) error {
	org, user := s.tc.Caller()
	path := reservePath(amount, shortName, year)

	var wg sync.WaitGroup
	errs := make(chan error, requests)
	for range requests {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, body, _, err := s.tc.Send(ctx, http.MethodPost, path, org, user)
			if err != nil {
				errs <- err
				return
			}
			var res reservation
			if status == http.StatusOK || status == http.StatusPartialContent {
				if err := json.Unmarshal(body, &res); err != nil {
					errs <- fmt.Errorf("decode reservation: %w", err)
					return
				}
			}
			s.mu.Lock()
			defer s.mu.Unlock()
			s.statuses = append(s.statuses, status)
			s.reserved = append(s.reserved, res.CVEIDs...)
		}()
	}
	wg.Wait()
	close(errs)
	return <-errs
}

func (s *cveidSteps) responseShouldContain(_ context.Context, n int) error {
	var res reservation
	if err := json.Unmarshal(s.tc.GetLastResponseBody(), &res); err != nil {
		return fmt.Errorf("decode reservation: %w", err)
	}
	if len(res.CVEIDs) != n {
		return fmt.Errorf("expected %d identifiers, got %d", n, len(res.CVEIDs))
	}
	return nil
}

func (s *cveidSteps) everyOwnedBy(ctx context.Context, shortName string) error {
	org, user := s.tc.Caller()
	for _, id := range s.reserved {
		if id.State != "RESERVED" || id.OwningCNA != shortName {
			return fmt.Errorf("%s: state %s owner %s", id.ID, id.State, id.OwningCNA)
		}
		status, body, _, err := s.tc.Send(ctx, http.MethodGet, "/api/cve-id/"+id.ID, org, user)
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return fmt.Errorf("read %s: status %d: %s", id.ID, status, body)
		}
	}
	return nil
}

func (s *cveidSteps) everyConcurrentSucceeded(_ context.Context) error {
	for _, status := range s.statuses {
		if status != http.StatusOK {
			return fmt.Errorf("a concurrent request returned %d", status)
		}
	}
	return nil
}

func (s *cveidSteps) noDuplicates(_ context.Context) error {
	seen := make(map[string]bool, len(s.reserved))
	for _, id := range s.reserved {
		if seen[id.ID] {
			return fmt.Errorf("%s issued twice", id.ID)
		}
		seen[id.ID] = true
	}
	return nil
}
