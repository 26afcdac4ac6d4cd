package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Skozial17/supportchat/application/ports"
	"github.com/Skozial17/supportchat/domain/core/entities"
	pkgerrors "github.com/Skozial17/supportchat/pkg/errors"
)

// DriverRepository keeps driver registrations in memory
type DriverRepository struct {
	mu      sync.RWMutex
	drivers map[string]*entities.Driver
}

// NewDriverRepository creates an empty driver repository
func NewDriverRepository() *DriverRepository {
	return &DriverRepository{drivers: make(map[string]*entities.Driver)}
}

func (r *DriverRepository) Save(_ context.Context, driver *entities.Driver) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, other := range r.drivers {
		if id != driver.ID() && other.Email() == driver.Email() {
			return pkgerrors.ErrDriverAlreadyRegistered
		}
	}
	r.drivers[driver.ID()] = copyDriver(driver)
	return nil
}

func (r *DriverRepository) GetByID(_ context.Context, id string) (*entities.Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.drivers[id]
	if !ok {
		return nil, pkgerrors.NewDriverNotFoundError(id)
	}
	return copyDriver(d), nil
}

func (r *DriverRepository) GetByEmail(_ context.Context, email string) (*entities.Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, d := range r.drivers {
		if d.Email() == email {
			return copyDriver(d), nil
		}
	}
	return nil, pkgerrors.NewDriverNotFoundError(email)
}

// ListByStatus returns the oldest registrations first.
func (r *DriverRepository) ListByStatus(_ context.Context, status entities.DriverStatus, limit int) ([]*entities.Driver, error) {
	r.mu.RLock()
	var found []*entities.Driver
	for _, d := range r.drivers {
		if d.Status() == status {
			found = append(found, copyDriver(d))
		}
	}
	r.mu.RUnlock()

	sort.Slice(found, func(i, j int) bool { return found[i].CreatedAt().Before(found[j].CreatedAt()) })
	if limit > 0 && len(found) > limit {
		found = found[:limit]
	}
	return found, nil
}

func copyDriver(d *entities.Driver) *entities.Driver {
	return entities.ReconstructDriver(d.ID(), d.Name(), d.Email(), d.Phone(), d.Company(), d.Status(),
		d.RejectReason(), d.ReviewedBy(), d.CreatedAt(), d.ReviewedAt(), d.Version())
}

// ConnectionRepository keeps WebSocket connections in memory
type ConnectionRepository struct {
	mu          sync.RWMutex
	connections map[string]ports.Connection
}

// NewConnectionRepository creates an empty connection repository
func NewConnectionRepository() *ConnectionRepository {
	return &ConnectionRepository{connections: make(map[string]ports.Connection)}
}

func (r *ConnectionRepository) Save(_ context.Context, conn ports.Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conn.ConnectedAt.IsZero() {
		conn.ConnectedAt = time.Now()
	}
	r.connections[conn.ConnectionID] = conn
	return nil
}

func (r *ConnectionRepository) Delete(_ context.Context, connectionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.connections, connectionID)
	return nil
}

func (r *ConnectionRepository) ListByCase(_ context.Context, caseID string) ([]ports.Connection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var conns []ports.Connection
	for _, c := range r.connections {
		if c.CaseID == caseID {
			conns = append(conns, c)
		}
	}
	return conns, nil
}

// Locker serializes writers inside one process
type Locker struct {
	mu    sync.Mutex
	held  map[string]heldLock
	retry time.Duration
}

type heldLock struct {
	owner     string
	expiresAt time.Time
}

// NewLocker creates a process local locker
func NewLocker() *Locker {
	return &Locker{held: make(map[string]heldLock), retry: 5 * time.Millisecond}
}

// Acquire polls until the resource is free, its holder expired, or wait elapses.
func (l *Locker) Acquire(ctx context.Context, resource, owner string, ttl, wait time.Duration) (ports.Lock, error) {
	deadline := time.Now().Add(wait)
	for {
		if l.tryAcquire(resource, owner, ttl) {
			return &lock{locker: l, resource: resource, owner: owner}, nil
		}
		if !time.Now().Before(deadline) {
			return nil, pkgerrors.NewConcurrentModificationError(resource)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}
}

func (l *Locker) tryAcquire(resource, owner string, ttl time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	if h, ok := l.held[resource]; ok && now.Before(h.expiresAt) {
		return false
	}
	l.held[resource] = heldLock{owner: owner, expiresAt: now.Add(ttl)}
	return true
}

type lock struct {
	locker   *Locker
	resource string
	owner    string
}

func (k *lock) Release(_ context.Context) error {
	k.locker.mu.Lock()
	defer k.locker.mu.Unlock()
	if h, ok := k.locker.held[k.resource]; ok && h.owner == k.owner {
		delete(k.locker.held, k.resource)
	}
	return nil
}
