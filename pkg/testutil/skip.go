package testutil

import (
	"os"
	"strconv"
	"testing"
)

// IntegrationEnv opts into container-backed tests when CI is set.
const IntegrationEnv = "INTEGRATION_TESTS"

// RequireIntegration skips container-backed tests in -short mode, and in CI
// unless INTEGRATION_TESTS is truthy. Local runs default to enabled.
func RequireIntegration(t testing.TB) {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in -short mode")
	}
	if os.Getenv("CI") == "" {
		return
	}
	if enabled, _ := strconv.ParseBool(os.Getenv(IntegrationEnv)); !enabled {
		t.Skipf("integration test skipped in CI; set %s=1 to run", IntegrationEnv)
	}
}
