// Package memory is an in-process persistence backend for local runs and tests.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/Skozial17/supportchat/application/ports"
	"github.com/Skozial17/supportchat/domain/core/aggregates"
	"github.com/Skozial17/supportchat/domain/core/entities"
	"github.com/Skozial17/supportchat/domain/core/valueobjects"
	"github.com/Skozial17/supportchat/domain/events"
	pkgerrors "github.com/Skozial17/supportchat/pkg/errors"
)

type caseEntry struct {
	snapshot *aggregates.CaseSnapshot
	record   *aggregates.CaseAttributes
	status   valueobjects.CaseStatus
	messages []*entities.Message
	ids      map[string]struct{}
	notify   chan struct{}
}

// Store keeps cases, their messages and the event audit trail in memory. It
// serves as PersistenceGateway, CaseRepository and EventStore.
type Store struct {
	mu     sync.RWMutex
	cases  map[string]*caseEntry
	events map[string][]ports.StoredEvent
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		cases:  make(map[string]*caseEntry),
		events: make(map[string][]ports.StoredEvent),
	}
}

// entry returns the case entry, creating it on first use. Caller holds mu.
func (s *Store) entry(caseID string) *caseEntry {
	e, ok := s.cases[caseID]
	if !ok {
		e = &caseEntry{
			status: valueobjects.CaseStatusOpen,
			ids:    make(map[string]struct{}),
			notify: make(chan struct{}),
		}
		s.cases[caseID] = e
	}
	return e
}

// CreateCase stores the finalized case record. Repeating it is harmless.
func (s *Store) CreateCase(_ context.Context, attrs aggregates.CaseAttributes) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := attrs.CaseID.String()
	e := s.entry(id)
	if e.record == nil {
		rec := attrs
		e.record = &rec
		e.status = attrs.Status
	}
	return id, nil
}

// AppendMessage appends msg once; a message id already stored is ignored.
func (s *Store) AppendMessage(ctx context.Context, caseID string, msg *entities.Message) error {
	return s.AppendMessages(ctx, caseID, []*entities.Message{msg})
}

// AppendMessages appends msgs under one lock, skipping stored ids.
func (s *Store) AppendMessages(_ context.Context, caseID string, msgs []*entities.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entry(caseID)
	added := false
	for _, msg := range msgs {
		if _, dup := e.ids[msg.ID()]; dup {
			continue
		}
		e.ids[msg.ID()] = struct{}{}
		e.messages = append(e.messages, msg)
		added = true
	}
	if !added {
		return nil
	}

	close(e.notify)
	e.notify = make(chan struct{})
	return nil
}

func (s *Store) UpdateStatus(_ context.Context, caseID string, status valueobjects.CaseStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.cases[caseID]
	if !ok {
		return pkgerrors.NewCaseNotFoundError(caseID)
	}
	e.status = status
	return nil
}

// Subscribe replays the stored messages and then follows new ones.
func (s *Store) Subscribe(_ context.Context, caseID string) (ports.MessageStream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry(caseID)
	return &stream{store: s, caseID: caseID, done: make(chan struct{})}, nil
}

// CaseRecord returns the finalized record, if any.
func (s *Store) CaseRecord(caseID string) (aggregates.CaseAttributes, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.cases[caseID]
	if !ok || e.record == nil {
		return aggregates.CaseAttributes{}, false
	}
	rec := *e.record
	rec.Status = e.status
	return rec, true
}

// Save stores the snapshot unless a newer version is already stored.
func (s *Store) Save(_ context.Context, snapshot aggregates.CaseSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := snapshot.ID.String()
	e := s.entry(id)
	if e.snapshot != nil && e.snapshot.Version > snapshot.Version {
		return pkgerrors.NewConcurrentModificationError(id)
	}
	snap := snapshot
	e.snapshot = &snap
	return nil
}

func (s *Store) Get(_ context.Context, caseID string) (*ports.CaseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.cases[caseID]
	if !ok || e.snapshot == nil {
		return nil, pkgerrors.NewCaseNotFoundError(caseID)
	}
	msgs := make([]*entities.Message, len(e.messages))
	copy(msgs, e.messages)
	return &ports.CaseRecord{Snapshot: *e.snapshot, Messages: msgs}, nil
}

// List filters snapshots and pages through them newest first. The cursor is
// the offset of the next page.
func (s *Store) List(_ context.Context, criteria ports.CaseCriteria) (*ports.CasePage, error) {
	s.mu.RLock()
	matched := make([]aggregates.CaseSnapshot, 0, len(s.cases))
	for _, e := range s.cases {
		if e.snapshot == nil || !matches(*e.snapshot, criteria) {
			continue
		}
		matched = append(matched, *e.snapshot)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].UpdatedAt.Equal(matched[j].UpdatedAt) {
			return matched[i].ID.String() < matched[j].ID.String()
		}
		return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
	})

	offset := 0
	if criteria.Cursor != "" {
		n, err := strconv.Atoi(criteria.Cursor)
		if err != nil || n < 0 {
			return nil, pkgerrors.NewValidationError("invalid cursor")
		}
		offset = n
	}
	if offset > len(matched) {
		offset = len(matched)
	}
	end := len(matched)
	if criteria.Limit > 0 && offset+criteria.Limit < end {
		end = offset + criteria.Limit
	}

	page := &ports.CasePage{Cases: matched[offset:end]}
	if end < len(matched) {
		page.NextCursor = strconv.Itoa(end)
	}
	return page, nil
}

func matches(snap aggregates.CaseSnapshot, c ports.CaseCriteria) bool {
	if c.DriverID != "" && snap.Driver.UserID != c.DriverID {
		return false
	}
	if c.Status != "" && snap.Status.String() != c.Status {
		return false
	}
	if c.Search == "" {
		return true
	}
	needle := strings.ToLower(c.Search)
	for _, hay := range []string{snap.ID.String(), snap.Title, snap.Driver.Name} {
		if strings.Contains(strings.ToLower(hay), needle) {
			return true
		}
	}
	return false
}

// stream walks a case's message list by position.
type stream struct {
	store  *Store
	caseID string
	pos    int
	once   sync.Once
	done   chan struct{}
}

func (st *stream) Next(ctx context.Context) (*entities.Message, error) {
	for {
		st.store.mu.RLock()
		e := st.store.cases[st.caseID]
		if st.pos < len(e.messages) {
			msg := e.messages[st.pos]
			st.pos++
			st.store.mu.RUnlock()
			return msg, nil
		}
		wait := e.notify
		st.store.mu.RUnlock()

		select {
		case <-wait:
		case <-st.done:
			return nil, ports.ErrStreamClosed
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (st *stream) Close() error {
	st.once.Do(func() { close(st.done) })
	return nil
}

// SaveEvents appends events to the audit trail of their aggregates.
func (s *Store) SaveEvents(_ context.Context, evts []events.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range evts {
		payload, err := json.Marshal(e)
		if err != nil {
			return pkgerrors.Wrap(err, "failed to marshal event")
		}
		s.events[e.GetAggregateID()] = append(s.events[e.GetAggregateID()], ports.StoredEvent{
			AggregateID: e.GetAggregateID(),
			EventType:   e.GetEventType(),
			Version:     e.GetVersion(),
			Timestamp:   e.GetTimestamp(),
			Payload:     string(payload),
		})
	}
	return nil
}

func (s *Store) GetEvents(_ context.Context, aggregateID string) ([]ports.StoredEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := make([]ports.StoredEvent, len(s.events[aggregateID]))
	copy(stored, s.events[aggregateID])
	return stored, nil
}
