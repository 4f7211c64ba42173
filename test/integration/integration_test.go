package integration

import (
	"os"
	"testing"

	"github.com/cucumber/godog"
)

func runSuite(t *testing.T, backend Backend) {
	suite := godog.TestSuite{
		ScenarioInitializer: func(sc *godog.ScenarioContext) {
			steps := NewStepsContext(backend)
			steps.RegisterSteps(sc)
		},
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			Strict:   true,
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("Non-zero status returned, failed to run feature tests")
	}
}

func TestFeatures(t *testing.T) {
	runSuite(t, MemoryBackend{})
}

func TestFeaturesPostgres(t *testing.T) {
	// Skip if not running integration tests
	if os.Getenv("INTEGRATION_TEST") == "" {
		t.Skip("Skipping integration tests. Set INTEGRATION_TEST=1 to run.")
	}

	backend, err := NewPostgresBackend(t.Context())
	if err != nil {
		t.Fatalf("Failed to start postgres: %v", err)
	}
	defer backend.Close(t.Context())

	runSuite(t, backend)
}
