package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"pricewatch-backend/lib/docstore"
	"pricewatch-backend/lib/telemetry"
)

type ServiceParams struct {
	// Name of the service under test, used for telemetry.
	Name string
}

type ServiceResult struct {
	Store *docstore.Store
}

// SetupService opens an in-memory document store and test telemetry.
// The returned cleanup must be called (usually deferred) before the
// test exits.
func SetupService(t *testing.T, params ServiceParams) (ServiceResult, func()) {
	telemetryCleanup := telemetry.SetupForTesting(t, params.Name)

	store, err := docstore.Open(":memory:")
	require.NoError(t, err)

	return ServiceResult{Store: store}, func() {
		telemetryCleanup()
	}
}
