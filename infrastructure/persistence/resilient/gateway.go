// Package resilient guards the case store with a circuit breaker.
package resilient

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/Skozial17/supportchat/application/ports"
	"github.com/Skozial17/supportchat/domain/core/aggregates"
	"github.com/Skozial17/supportchat/domain/core/entities"
	"github.com/Skozial17/supportchat/domain/core/valueobjects"
	pkgerrors "github.com/Skozial17/supportchat/pkg/errors"
	"github.com/Skozial17/supportchat/pkg/observability"
)

// Backend is a store serving both the session gateway and case reads.
type Backend interface {
	ports.PersistenceGateway
	ports.CaseRepository
}

// BreakerConfig holds configuration for the circuit breaker
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// Gateway forwards to a Backend through a circuit breaker. Only
// infrastructure failures count against the breaker; domain outcomes such
// as a missing case or a stale version pass through as successes.
type Gateway struct {
	inner     Backend
	breaker   *gobreaker.CircuitBreaker
	collector *observability.Collector
	logger    *zap.Logger
}

// NewGateway wraps inner. collector may be nil.
func NewGateway(inner Backend, cfg BreakerConfig, collector *observability.Collector, logger *zap.Logger) *Gateway {
	g := &Gateway{inner: inner, collector: collector, logger: logger}
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			if collector != nil {
				collector.BreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
		IsSuccessful: isSuccessful,
	})
	return g
}

func isSuccessful(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	if domainErr := pkgerrors.GetDomainError(err); domainErr != nil {
		return domainErr.Type != pkgerrors.DomainInfrastructureError
	}
	return false
}

// State reports the breaker state, mainly for health checks.
func (g *Gateway) State() gobreaker.State {
	return g.breaker.State()
}

func (g *Gateway) execute(operation string, fn func() (interface{}, error)) (interface{}, error) {
	start := time.Now()
	result, err := g.breaker.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		g.logger.Debug("Store call rejected by circuit breaker",
			zap.String("operation", operation),
			zap.Error(err),
		)
		err = pkgerrors.NewStoreUnavailableError(operation, err)
	}
	if g.collector != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		g.collector.StoreOperations.WithLabelValues(operation, status).Inc()
		g.collector.StoreDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
	return result, err
}

func (g *Gateway) CreateCase(ctx context.Context, attrs aggregates.CaseAttributes) (string, error) {
	result, err := g.execute("create_case", func() (interface{}, error) {
		return g.inner.CreateCase(ctx, attrs)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (g *Gateway) AppendMessage(ctx context.Context, caseID string, msg *entities.Message) error {
	_, err := g.execute("append_message", func() (interface{}, error) {
		return nil, g.inner.AppendMessage(ctx, caseID, msg)
	})
	return err
}

func (g *Gateway) AppendMessages(ctx context.Context, caseID string, msgs []*entities.Message) error {
	_, err := g.execute("append_messages", func() (interface{}, error) {
		return nil, g.inner.AppendMessages(ctx, caseID, msgs)
	})
	return err
}

func (g *Gateway) UpdateStatus(ctx context.Context, caseID string, status valueobjects.CaseStatus) error {
	_, err := g.execute("update_status", func() (interface{}, error) {
		return nil, g.inner.UpdateStatus(ctx, caseID, status)
	})
	return err
}

func (g *Gateway) Subscribe(ctx context.Context, caseID string) (ports.MessageStream, error) {
	result, err := g.execute("subscribe", func() (interface{}, error) {
		return g.inner.Subscribe(ctx, caseID)
	})
	if err != nil {
		return nil, err
	}
	return result.(ports.MessageStream), nil
}

func (g *Gateway) Save(ctx context.Context, snapshot aggregates.CaseSnapshot) error {
	_, err := g.execute("save_case", func() (interface{}, error) {
		return nil, g.inner.Save(ctx, snapshot)
	})
	return err
}

func (g *Gateway) Get(ctx context.Context, caseID string) (*ports.CaseRecord, error) {
	result, err := g.execute("get_case", func() (interface{}, error) {
		return g.inner.Get(ctx, caseID)
	})
	if err != nil {
		return nil, err
	}
	return result.(*ports.CaseRecord), nil
}

func (g *Gateway) List(ctx context.Context, criteria ports.CaseCriteria) (*ports.CasePage, error) {
	result, err := g.execute("list_cases", func() (interface{}, error) {
		return g.inner.List(ctx, criteria)
	})
	if err != nil {
		return nil, err
	}
	return result.(*ports.CasePage), nil
}
