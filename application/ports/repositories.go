package ports

import (
	"context"
	"errors"
	"time"

	"github.com/Skozial17/supportchat/domain/conversation"
	"github.com/Skozial17/supportchat/domain/core/aggregates"
	"github.com/Skozial17/supportchat/domain/core/entities"
	"github.com/Skozial17/supportchat/domain/core/valueobjects"
	"github.com/Skozial17/supportchat/domain/events"
)

// ErrStreamClosed is returned by MessageStream.Next after Close.
var ErrStreamClosed = errors.New("message stream closed")

// PersistenceGateway is the case store a session writes through, plus the
// per-case message feed.
type PersistenceGateway interface {
	aggregates.Store

	// Subscribe opens a feed of the case's messages in store order, starting
	// with the ones already stored. Delivery is at-least-once; consumers
	// merge by message id.
	Subscribe(ctx context.Context, caseID string) (MessageStream, error)
}

// MessageStream is a consumer-driven feed of messages.
type MessageStream interface {
	// Next blocks until a message is available or ctx is done.
	Next(ctx context.Context) (*entities.Message, error)
	Close() error
}

// IdentityProvider resolves the caller of the current request.
type IdentityProvider interface {
	CurrentUser(ctx context.Context) (valueobjects.Identity, error)
}

// FlowCatalog holds the validated conversation graphs loaded at startup.
type FlowCatalog interface {
	Graph(name string) (*conversation.Graph, error)
	Names() []string
	DefaultFlow() string
}

// CaseRecord is a stored session with its transcript.
type CaseRecord struct {
	Snapshot aggregates.CaseSnapshot
	Messages []*entities.Message
}

// CaseCriteria filters case listings. Empty fields do not filter.
type CaseCriteria struct {
	DriverID string
	Status   string
	Search   string
	Limit    int
	Cursor   string
}

type CasePage struct {
	Cases      []aggregates.CaseSnapshot
	NextCursor string
}

// CaseRepository persists session state next to the gateway's messages.
type CaseRepository interface {
	// Save writes the snapshot; it fails with ErrConcurrentModification when
	// a newer version is already stored.
	Save(ctx context.Context, snapshot aggregates.CaseSnapshot) error
	Get(ctx context.Context, caseID string) (*CaseRecord, error)
	List(ctx context.Context, criteria CaseCriteria) (*CasePage, error)
}

// DriverRepository persists driver registrations
type DriverRepository interface {
	Save(ctx context.Context, driver *entities.Driver) error
	GetByID(ctx context.Context, id string) (*entities.Driver, error)
	GetByEmail(ctx context.Context, email string) (*entities.Driver, error)
	ListByStatus(ctx context.Context, status entities.DriverStatus, limit int) ([]*entities.Driver, error)
}

// Connection is a live WebSocket client following one case.
type Connection struct {
	ConnectionID string
	UserID       string
	Role         valueobjects.Role
	CaseID       string
	ConnectedAt  time.Time
}

type ConnectionRepository interface {
	Save(ctx context.Context, conn Connection) error
	Delete(ctx context.Context, connectionID string) error
	ListByCase(ctx context.Context, caseID string) ([]Connection, error)
}

// EventStore keeps the audit trail of domain events per aggregate
type EventStore interface {
	SaveEvents(ctx context.Context, events []events.DomainEvent) error
	GetEvents(ctx context.Context, aggregateID string) ([]StoredEvent, error)
}

// StoredEvent is an audit entry as read back from the event store.
type StoredEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Version     int       `json:"version"`
	Timestamp   time.Time `json:"timestamp"`
	Payload     string    `json:"payload"`
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	Publish(ctx context.Context, event events.DomainEvent) error
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// EventObserver receives committed events, e.g. for metrics.
type EventObserver interface {
	ObserveEvents(evts []events.DomainEvent)
}

// Locker serializes writers of one resource across processes.
type Locker interface {
	Acquire(ctx context.Context, resource, owner string, ttl, wait time.Duration) (Lock, error)
}

type Lock interface {
	Release(ctx context.Context) error
}

// CaseCacheKeyPrefix prefixes every cached read of one case.
func CaseCacheKeyPrefix(caseID string) string {
	return "case:" + caseID + ":"
}

// Cache defines the interface for caching
type Cache interface {
	// Get retrieves a value from cache
	Get(ctx context.Context, key string) (interface{}, bool)

	// Set stores a value in cache with TTL in seconds
	Set(ctx context.Context, key string, value interface{}, ttl int) error

	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
	Clear(ctx context.Context) error
}
