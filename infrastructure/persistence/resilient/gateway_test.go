package resilient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Skozial17/supportchat/application/ports"
	"github.com/Skozial17/supportchat/domain/core/valueobjects"
	"github.com/Skozial17/supportchat/infrastructure/persistence/memory"
	pkgerrors "github.com/Skozial17/supportchat/pkg/errors"
	"github.com/Skozial17/supportchat/pkg/observability"
)

// failingBackend fails every status update with an infrastructure error.
type failingBackend struct {
	*memory.Store
	calls int
}

func (f *failingBackend) UpdateStatus(context.Context, string, valueobjects.CaseStatus) error {
	f.calls++
	return pkgerrors.NewStoreUnavailableError("update_status", errors.New("connection reset"))
}

func testConfig() BreakerConfig {
	cfg := DefaultBreakerConfig("case-store")
	cfg.MinRequests = 3
	cfg.FailureThreshold = 0.5
	cfg.Timeout = time.Minute
	return cfg
}

func TestGateway_OpensAfterInfrastructureFailures(t *testing.T) {
	backend := &failingBackend{Store: memory.NewStore()}
	collector := observability.NewCollector("test")
	gw := NewGateway(backend, testConfig(), collector, zap.NewNop())

	for i := 0; i < 3; i++ {
		err := gw.UpdateStatus(context.Background(), "case-1", valueobjects.CaseStatusClosed)
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, gw.State())

	err := gw.UpdateStatus(context.Background(), "case-1", valueobjects.CaseStatusClosed)
	assert.ErrorIs(t, err, pkgerrors.ErrStoreUnavailable)
	assert.Equal(t, 3, backend.calls, "open breaker must not reach the backend")

	assert.Equal(t, float64(gobreaker.StateOpen), testutil.ToFloat64(collector.BreakerState.WithLabelValues("case-store")))
	assert.Equal(t, float64(4), testutil.ToFloat64(collector.StoreOperations.WithLabelValues("update_status", "error")))
}

func TestGateway_DomainErrorsDoNotTrip(t *testing.T) {
	gw := NewGateway(memory.NewStore(), testConfig(), nil, zap.NewNop())

	for i := 0; i < 5; i++ {
		_, err := gw.Get(context.Background(), "case-missing")
		assert.ErrorIs(t, err, pkgerrors.ErrCaseNotFound)
	}
	assert.Equal(t, gobreaker.StateClosed, gw.State())
}

func TestGateway_PassesThroughResults(t *testing.T) {
	store := memory.NewStore()
	gw := NewGateway(store, testConfig(), nil, zap.NewNop())
	ctx := context.Background()

	page, err := gw.List(ctx, ports.CaseCriteria{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, page.Cases)

	stream, err := gw.Subscribe(ctx, "case-1")
	require.NoError(t, err)
	require.NoError(t, stream.Close())
}
