// Package mocks provides testify mocks of the application ports.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/Skozial17/supportchat/application/ports"
	"github.com/Skozial17/supportchat/domain/core/aggregates"
	"github.com/Skozial17/supportchat/domain/core/entities"
	"github.com/Skozial17/supportchat/domain/core/valueobjects"
	"github.com/Skozial17/supportchat/domain/events"
)

// EventStore mocks ports.EventStore
type EventStore struct {
	mock.Mock
}

func (m *EventStore) SaveEvents(ctx context.Context, evts []events.DomainEvent) error {
	args := m.Called(ctx, evts)
	return args.Error(0)
}

func (m *EventStore) GetEvents(ctx context.Context, aggregateID string) ([]ports.StoredEvent, error) {
	args := m.Called(ctx, aggregateID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ports.StoredEvent), args.Error(1)
}

// EventPublisher mocks ports.EventPublisher
type EventPublisher struct {
	mock.Mock
}

func (m *EventPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *EventPublisher) PublishBatch(ctx context.Context, evts []events.DomainEvent) error {
	args := m.Called(ctx, evts)
	return args.Error(0)
}

// Locker mocks ports.Locker
type Locker struct {
	mock.Mock
}

func (m *Locker) Acquire(ctx context.Context, resource, owner string, ttl, wait time.Duration) (ports.Lock, error) {
	args := m.Called(ctx, resource, owner, ttl, wait)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(ports.Lock), args.Error(1)
}

// Lock mocks ports.Lock
type Lock struct {
	mock.Mock
}

func (m *Lock) Release(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Cache mocks ports.Cache
type Cache struct {
	mock.Mock
}

func (m *Cache) Get(ctx context.Context, key string) (interface{}, bool) {
	args := m.Called(ctx, key)
	return args.Get(0), args.Bool(1)
}

func (m *Cache) Set(ctx context.Context, key string, value interface{}, ttl int) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *Cache) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *Cache) DeletePrefix(ctx context.Context, prefix string) error {
	args := m.Called(ctx, prefix)
	return args.Error(0)
}

func (m *Cache) Clear(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// DriverRepository mocks ports.DriverRepository
type DriverRepository struct {
	mock.Mock
}

func (m *DriverRepository) Save(ctx context.Context, driver *entities.Driver) error {
	args := m.Called(ctx, driver)
	return args.Error(0)
}

func (m *DriverRepository) GetByID(ctx context.Context, id string) (*entities.Driver, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Driver), args.Error(1)
}

func (m *DriverRepository) GetByEmail(ctx context.Context, email string) (*entities.Driver, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Driver), args.Error(1)
}

func (m *DriverRepository) ListByStatus(ctx context.Context, status entities.DriverStatus, limit int) ([]*entities.Driver, error) {
	args := m.Called(ctx, status, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Driver), args.Error(1)
}

// Gateway mocks ports.PersistenceGateway
type Gateway struct {
	mock.Mock
}

func (m *Gateway) CreateCase(ctx context.Context, attrs aggregates.CaseAttributes) (string, error) {
	args := m.Called(ctx, attrs)
	return args.String(0), args.Error(1)
}

func (m *Gateway) AppendMessage(ctx context.Context, caseID string, msg *entities.Message) error {
	args := m.Called(ctx, caseID, msg)
	return args.Error(0)
}

func (m *Gateway) AppendMessages(ctx context.Context, caseID string, msgs []*entities.Message) error {
	args := m.Called(ctx, caseID, msgs)
	return args.Error(0)
}

func (m *Gateway) UpdateStatus(ctx context.Context, caseID string, status valueobjects.CaseStatus) error {
	args := m.Called(ctx, caseID, status)
	return args.Error(0)
}

func (m *Gateway) Subscribe(ctx context.Context, caseID string) (ports.MessageStream, error) {
	args := m.Called(ctx, caseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(ports.MessageStream), args.Error(1)
}

// IdentityProvider mocks ports.IdentityProvider
type IdentityProvider struct {
	mock.Mock
}

func (m *IdentityProvider) CurrentUser(ctx context.Context) (valueobjects.Identity, error) {
	args := m.Called(ctx)
	return args.Get(0).(valueobjects.Identity), args.Error(1)
}
