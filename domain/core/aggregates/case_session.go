package aggregates

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Skozial17/supportchat/domain/conversation"
	"github.com/Skozial17/supportchat/domain/core/entities"
	"github.com/Skozial17/supportchat/domain/core/valueobjects"
	"github.com/Skozial17/supportchat/domain/events"
	pkgerrors "github.com/Skozial17/supportchat/pkg/errors"
)

// SystemDisplayName attributes system messages in rendered descriptions.
const SystemDisplayName = "System Bot"

var messageNamespace = uuid.MustParse("6f1c8a52-3d4e-4b7a-9c0f-2e5d8b1a7c34")

// Store is the persistence surface a session writes through. A session only
// changes its in-memory state after the store has confirmed the write.
type Store interface {
	// CreateCase stores the finalized case and returns its identifier.
	CreateCase(ctx context.Context, attrs CaseAttributes) (string, error)
	// AppendMessage appends msg to the case. Appends for one case are kept in call order.
	AppendMessage(ctx context.Context, caseID string, msg *entities.Message) error
	// AppendMessages appends msgs in order as one write: either all of them
	// are stored or none is. Ids already stored are skipped.
	AppendMessages(ctx context.Context, caseID string, msgs []*entities.Message) error
	UpdateStatus(ctx context.Context, caseID string, status valueobjects.CaseStatus) error
}

// CaseAttributes is the case-creation request assembled at finalization.
type CaseAttributes struct {
	CaseID      valueobjects.CaseID
	Driver      valueobjects.Identity
	Flow        string
	Title       string
	Description string
	Status      valueobjects.CaseStatus
	Priority    valueobjects.Priority
	CreatedAt   time.Time
}

type actionKind int

const (
	actionOption actionKind = iota + 1
	actionInput
)

// Action is a single user step through the conversation.
type Action struct {
	kind  actionKind
	value string
}

// ChooseOption selects one of the current step's options.
func ChooseOption(option string) Action {
	return Action{kind: actionOption, value: option}
}

// SubmitText answers a step that asks for free text.
func SubmitText(text string) Action {
	return Action{kind: actionInput, value: text}
}

// IsOption reports whether the action is an option choice.
func (a Action) IsOption() bool { return a.kind == actionOption }

// Value returns the chosen option or the submitted text.
func (a Action) Value() string { return a.value }

// CaseSnapshot is the persisted state of a session apart from its messages.
type CaseSnapshot struct {
	ID          valueobjects.CaseID
	StoreRef    string
	Flow        string
	Cursor      string
	Status      valueobjects.CaseStatus
	Priority    valueobjects.Priority
	Completed   bool
	Finalized   bool
	Driver      valueobjects.Identity
	Title       string
	Description string
	CloseReason string
	LastOption  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Version     int
}

// CaseSession binds one run of a conversation graph to a case.
type CaseSession struct {
	id          valueobjects.CaseID
	storeRef    string
	graph       *conversation.Graph
	engine      *conversation.Engine
	store       Store
	driver      valueobjects.Identity
	cursor      string
	opening     *entities.Message
	transcript  *entities.Transcript
	status      valueobjects.CaseStatus
	priority    valueobjects.Priority
	completed   bool
	finalized   bool
	title       string
	description string
	closeReason string
	lastOption  string
	createdAt   time.Time
	updatedAt   time.Time
	version     int
	now         func() time.Time

	events []events.DomainEvent
}

// SessionOption configures a CaseSession
type SessionOption func(*CaseSession)

// WithSessionClock overrides the time source for the session and its engine.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *CaseSession) { s.now = now }
}

// StartCaseSession opens a session at the graph's start step for driver.
func StartCaseSession(id valueobjects.CaseID, graph *conversation.Graph, driver valueobjects.Identity, store Store, opts ...SessionOption) (*CaseSession, error) {
	if id.IsZero() {
		return nil, pkgerrors.NewValidationError("case id cannot be empty")
	}
	if graph == nil {
		return nil, pkgerrors.NewValidationError("conversation graph is required")
	}
	if driver.UserID == "" {
		return nil, pkgerrors.NewValidationError("driver identity is required")
	}

	s := &CaseSession{
		id:         id,
		storeRef:   id.String(),
		graph:      graph,
		store:      store,
		driver:     driver,
		transcript: entities.NewTranscript(),
		status:     valueobjects.CaseStatusOpen,
		priority:   valueobjects.PriorityMedium,
		version:    1,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.createdAt = s.now()
	s.updatedAt = s.createdAt
	s.initEngine()

	step, opening := s.engine.Start()
	s.cursor = step.ID
	s.opening = opening
	s.addEvent(events.NewCaseStarted(id, driver.UserID, graph.Name(), s.version, s.createdAt))
	return s, nil
}

// ReconstructCaseSession rehydrates a stored session with its transcript.
func ReconstructCaseSession(snap CaseSnapshot, graph *conversation.Graph, store Store, messages []*entities.Message, opts ...SessionOption) (*CaseSession, error) {
	if snap.ID.IsZero() {
		return nil, pkgerrors.NewValidationError("case id cannot be empty")
	}
	if graph == nil {
		return nil, pkgerrors.NewValidationError("conversation graph is required")
	}
	if !graph.Has(snap.Cursor) {
		return nil, pkgerrors.NewUnknownStepError(snap.Cursor)
	}

	s := &CaseSession{
		id:          snap.ID,
		storeRef:    snap.StoreRef,
		graph:       graph,
		store:       store,
		driver:      snap.Driver,
		cursor:      snap.Cursor,
		transcript:  entities.NewTranscript(messages...),
		status:      snap.Status,
		priority:    snap.Priority,
		completed:   snap.Completed,
		finalized:   snap.Finalized,
		title:       snap.Title,
		description: snap.Description,
		closeReason: snap.CloseReason,
		lastOption:  snap.LastOption,
		createdAt:   snap.CreatedAt,
		updatedAt:   snap.UpdatedAt,
		version:     snap.Version,
		now:         time.Now,
	}
	if s.storeRef == "" {
		s.storeRef = snap.ID.String()
	}
	for _, opt := range opts {
		opt(s)
	}
	s.initEngine()

	_, opening := s.engine.Start()
	s.opening = entities.NewMessage(opening.Text(), opening.Sender(), "", s.createdAt)
	return s, nil
}

func (s *CaseSession) initEngine() {
	s.engine = conversation.NewEngine(s.graph,
		conversation.WithUserID(s.driver.UserID),
		conversation.WithClock(s.now),
	)
}

// Advance applies one option choice or text input. The produced messages are
// appended through the store as one batch and only then committed to the
// session. Message ids derive from the session version, cursor and action, so
// retrying a rejected action, even on a reloaded session, resends the same
// ids and the store drops whatever already landed.
//
// Reaching the end of the traversal finalizes the case exactly once. When the
// store rejects finalization the committed messages are returned together
// with the error. The next Advance retries finalization without applying its
// action and, once the case is finalized, reports SessionClosed.
func (s *CaseSession) Advance(ctx context.Context, action Action) ([]*entities.Message, error) {
	if s.finalized {
		return nil, pkgerrors.NewSessionClosedError(s.id.String(), "finalized")
	}
	if s.status == valueobjects.CaseStatusClosed {
		return nil, pkgerrors.NewSessionClosedError(s.id.String(), "closed")
	}
	if s.completed {
		if err := s.finalize(ctx); err != nil {
			return nil, err
		}
		return nil, pkgerrors.NewSessionClosedError(s.id.String(), "finalized")
	}

	tr, err := s.transition(action)
	if err != nil {
		return nil, err
	}

	if err := s.store.AppendMessages(ctx, s.storeRef, tr.Messages); err != nil {
		return nil, err
	}

	for _, msg := range tr.Messages {
		s.commitMessage(msg)
	}
	s.cursor = tr.Next
	if action.kind == actionOption {
		s.lastOption = action.value
	}
	s.touch()

	if tr.Completed {
		s.completed = true
		if err := s.finalize(ctx); err != nil {
			return tr.Messages, err
		}
	}
	return tr.Messages, nil
}

// transition asks the engine for the next step and keys its messages to the
// current position of the session.
func (s *CaseSession) transition(action Action) (conversation.Transition, error) {
	var (
		tr  conversation.Transition
		err error
	)
	switch action.kind {
	case actionOption:
		tr, err = s.engine.SelectOption(s.cursor, action.value)
	case actionInput:
		tr, err = s.engine.SubmitInput(s.cursor, action.value)
	default:
		return conversation.Transition{}, pkgerrors.NewValidationError("action must be an option or an input")
	}
	if err != nil {
		return conversation.Transition{}, err
	}
	for i, msg := range tr.Messages {
		tr.Messages[i] = msg.WithID(s.transitionMessageID(action, i))
	}
	return tr, nil
}

func (s *CaseSession) transitionMessageID(action Action, index int) string {
	name := fmt.Sprintf("%s|%d|%s|%d|%s|%d", s.id.String(), s.version, s.cursor, action.kind, action.value, index)
	return uuid.NewSHA1(messageNamespace, []byte(name)).String()
}

func (s *CaseSession) finalize(ctx context.Context) error {
	if s.finalized {
		return nil
	}
	title := s.caseTitle()
	description := s.Description()
	ref, err := s.store.CreateCase(ctx, CaseAttributes{
		CaseID:      s.id,
		Driver:      s.driver,
		Flow:        s.graph.Name(),
		Title:       title,
		Description: description,
		Status:      s.status,
		Priority:    s.priority,
		CreatedAt:   s.createdAt,
	})
	if err != nil {
		return err
	}
	if ref != "" {
		s.storeRef = ref
	}
	s.finalized = true
	s.title = title
	s.description = description
	s.touch()
	s.addEvent(events.NewCaseFinalized(s.id, s.driver.UserID, title, description, s.priority, s.version, s.updatedAt))
	return nil
}

// Close marks the case closed. Cursor and transcript are left alone.
func (s *CaseSession) Close(ctx context.Context, reason string, actor valueobjects.Identity) error {
	if !s.status.CanTransitionTo(valueobjects.CaseStatusClosed) {
		return pkgerrors.NewInvalidStatusTransitionError(s.status.String(), valueobjects.CaseStatusClosed.String())
	}
	if err := s.store.UpdateStatus(ctx, s.storeRef, valueobjects.CaseStatusClosed); err != nil {
		return err
	}
	s.status = valueobjects.CaseStatusClosed
	s.closeReason = strings.TrimSpace(reason)
	s.touch()
	s.addEvent(events.NewCaseClosed(s.id, s.closeReason, actor.UserID, s.version, s.updatedAt))
	return nil
}

// Reopen marks a closed case open again. A finished traversal stays finished.
func (s *CaseSession) Reopen(ctx context.Context, actor valueobjects.Identity) error {
	if !s.status.CanTransitionTo(valueobjects.CaseStatusOpen) {
		return pkgerrors.NewInvalidStatusTransitionError(s.status.String(), valueobjects.CaseStatusOpen.String())
	}
	if err := s.store.UpdateStatus(ctx, s.storeRef, valueobjects.CaseStatusOpen); err != nil {
		return err
	}
	s.status = valueobjects.CaseStatusOpen
	s.closeReason = ""
	s.touch()
	s.addEvent(events.NewCaseReopened(s.id, actor.UserID, s.version, s.updatedAt))
	return nil
}

// PostMessage appends a direct message from a driver or an admin.
func (s *CaseSession) PostMessage(ctx context.Context, sender valueobjects.Identity, text, attachment string) (*entities.Message, error) {
	if s.status != valueobjects.CaseStatusOpen {
		return nil, pkgerrors.NewSessionClosedError(s.id.String(), "closed")
	}
	if strings.TrimSpace(text) == "" && attachment == "" {
		return nil, pkgerrors.NewEmptyInputError(s.cursor)
	}

	msg := entities.NewMessage(text, sender.Role.SenderRole(), sender.UserID, s.now())
	if attachment != "" {
		msg = msg.WithAttachment(attachment)
	}
	if err := s.store.AppendMessage(ctx, s.storeRef, msg); err != nil {
		return nil, err
	}
	s.commitMessage(msg)
	s.touch()
	return msg, nil
}

// Merge folds a message observed on the store into the transcript. Messages
// already present are ignored; it reports whether the transcript changed.
func (s *CaseSession) Merge(msg *entities.Message) bool {
	return s.transcript.Merge(msg)
}

// SetPriority changes the dashboard priority.
func (s *CaseSession) SetPriority(priority valueobjects.Priority) {
	if priority == s.priority {
		return
	}
	old := s.priority
	s.priority = priority
	s.touch()
	s.addEvent(events.NewCasePriorityChanged(s.id, old, priority, s.version, s.updatedAt))
}

// Description renders the opening prompt and the transcript, one
// "<sender>: <text>" line per message.
func (s *CaseSession) Description() string {
	full := entities.NewTranscript(s.opening)
	for _, m := range s.transcript.Messages() {
		full.Merge(m)
	}
	return full.Render(s.displayName)
}

func (s *CaseSession) displayName(m *entities.Message) string {
	switch m.Sender() {
	case valueobjects.SenderSystem:
		return SystemDisplayName
	case valueobjects.SenderStaff:
		return "Admin"
	default:
		return s.driver.DisplayName()
	}
}

func (s *CaseSession) caseTitle() string {
	title := s.graph.Title()
	if title == "" {
		title = "Support Case"
	}
	if s.lastOption != "" {
		title += " - " + s.lastOption
	}
	return title
}

func (s *CaseSession) commitMessage(msg *entities.Message) {
	if s.transcript.Merge(msg) {
		s.addEvent(events.NewMessageAppended(s.id, msg.ID(), msg.Sender(), msg.SenderID(), msg.Text(), s.driver.UserID, s.version, msg.CreatedAt()))
	}
}

func (s *CaseSession) touch() {
	s.updatedAt = s.now()
	s.version++
}

// CurrentStep returns the step under the cursor; ok is false once the cursor is End.
func (s *CaseSession) CurrentStep() (conversation.Step, bool) {
	step, err := s.graph.Lookup(s.cursor)
	if err != nil {
		return conversation.Step{}, false
	}
	return step, true
}

// AcceptsActions reports whether Advance can still move the conversation.
func (s *CaseSession) AcceptsActions() bool {
	return !s.completed && s.status == valueobjects.CaseStatusOpen
}

// Snapshot captures everything but the transcript for persistence.
func (s *CaseSession) Snapshot() CaseSnapshot {
	return CaseSnapshot{
		ID:          s.id,
		StoreRef:    s.storeRef,
		Flow:        s.graph.Name(),
		Cursor:      s.cursor,
		Status:      s.status,
		Priority:    s.priority,
		Completed:   s.completed,
		Finalized:   s.finalized,
		Driver:      s.driver,
		Title:       s.Title(),
		Description: s.description,
		CloseReason: s.closeReason,
		LastOption:  s.lastOption,
		CreatedAt:   s.createdAt,
		UpdatedAt:   s.updatedAt,
		Version:     s.version,
	}
}

func (s *CaseSession) ID() valueobjects.CaseID         { return s.id }
func (s *CaseSession) StoreRef() string                { return s.storeRef }
func (s *CaseSession) Flow() string                    { return s.graph.Name() }
func (s *CaseSession) Cursor() string                  { return s.cursor }
func (s *CaseSession) Status() valueobjects.CaseStatus { return s.status }
func (s *CaseSession) Priority() valueobjects.Priority { return s.priority }
func (s *CaseSession) Driver() valueobjects.Identity   { return s.driver }
func (s *CaseSession) Opening() *entities.Message      { return s.opening }
func (s *CaseSession) Messages() []*entities.Message   { return s.transcript.Messages() }
func (s *CaseSession) TranscriptLen() int              { return s.transcript.Len() }
func (s *CaseSession) IsCompleted() bool               { return s.completed }
func (s *CaseSession) IsFinalized() bool               { return s.finalized }
func (s *CaseSession) CloseReason() string             { return s.closeReason }
func (s *CaseSession) CreatedAt() time.Time            { return s.createdAt }
func (s *CaseSession) UpdatedAt() time.Time            { return s.updatedAt }
func (s *CaseSession) Version() int                    { return s.version }

// Title is the case title, or the provisional one while the intake runs.
func (s *CaseSession) Title() string {
	if s.title != "" {
		return s.title
	}
	return s.caseTitle()
}

// IsParticipant reports whether the identity may read and write this case.
func (s *CaseSession) IsParticipant(identity valueobjects.Identity) bool {
	return identity.IsAdmin() || identity.UserID == s.driver.UserID
}

func (s *CaseSession) addEvent(event events.DomainEvent) {
	s.events = append(s.events, event)
}

// GetUncommittedEvents returns events raised since the last commit
func (s *CaseSession) GetUncommittedEvents() []events.DomainEvent {
	return s.events
}

// MarkEventsAsCommitted clears the uncommitted events
func (s *CaseSession) MarkEventsAsCommitted() {
	s.events = nil
}
