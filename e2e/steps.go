package e2e

import (
	"github.com/cucumber/godog"

	"cveregistry/e2e/steps/common"
	"cveregistry/e2e/steps/cveid"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Register common steps (identity, generic requests, assertions)
	common.RegisterSteps(ctx, tc)

	// Register reservation-specific steps
	cveid.RegisterSteps(ctx, tc)
}
