package common

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	ActAs(org, user string)
	Do(ctx context.Context, method, path string) error
	GetResponseField(field string) (any, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	GetLastResponseHeader(name string) string
}

// RegisterSteps registers identity, request and assertion steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^I am user "([^"]*)" of "([^"]*)"$`, steps.actAs)
	ctx.Step(`^I am anonymous$`, steps.anonymous)
	ctx.Step(`^I (GET|POST|PUT) "([^"]*)"$`, steps.request)

	ctx.Step(`^the response status should be (\d+)$`, steps.statusShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, steps.fieldShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be (\d+)$`, steps.numericFieldShouldBe)
	ctx.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, steps.headerShouldBe)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) actAs(_ context.Context, user, org string) error {
	s.tc.ActAs(org, user)
	return nil
}

func (s *commonSteps) anonymous(_ context.Context) error {
	s.tc.ActAs("", "")
	return nil
}

func (s *commonSteps) request(ctx context.Context, method, path string) error {
	return s.tc.Do(ctx, method, path)
}

func (s *commonSteps) statusShouldBe(_ context.Context, expected int) error {
	if got := s.tc.GetLastResponseStatus(); got != expected {
		return fmt.Errorf("expected status %d, got %d: %s", expected, got, s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *commonSteps) fieldShouldBe(_ context.Context, field, expected string) error {
	v, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	if fmt.Sprint(v) != expected {
		return fmt.Errorf("expected %s=%q, got %v", field, expected, v)
	}
	return nil
}

func (s *commonSteps) numericFieldShouldBe(_ context.Context, field string, expected int) error {
	v, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	n, ok := v.(float64)
	if !ok || int(n) != expected {
		return fmt.Errorf("expected %s=%d, got %v", field, expected, v)
	}
	return nil
}

func (s *commonSteps) headerShouldBe(_ context.Context, name, expected string) error {
	if got := s.tc.GetLastResponseHeader(name); got != expected {
		return fmt.Errorf("expected header %s=%q, got %q", name, expected, got)
	}
	return nil
}
