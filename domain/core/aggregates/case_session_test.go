package aggregates

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skozial17/supportchat/domain/conversation"
	"github.com/Skozial17/supportchat/domain/core/entities"
	"github.com/Skozial17/supportchat/domain/core/valueobjects"
	"github.com/Skozial17/supportchat/domain/events"
	pkgerrors "github.com/Skozial17/supportchat/pkg/errors"
)

const siteCancelled = "Site told me load is cancelled but it is still on my Relay app"

type fakeStore struct {
	appended     []*entities.Message
	created      []CaseAttributes
	statuses     []valueobjects.CaseStatus
	failAppendAt int
	failCreate   error
	failStatus   error
}

func (f *fakeStore) CreateCase(_ context.Context, attrs CaseAttributes) (string, error) {
	if f.failCreate != nil {
		return "", f.failCreate
	}
	f.created = append(f.created, attrs)
	return attrs.CaseID.String(), nil
}

func (f *fakeStore) AppendMessage(ctx context.Context, caseID string, msg *entities.Message) error {
	return f.AppendMessages(ctx, caseID, []*entities.Message{msg})
}

// AppendMessages writes message by message. failAppendAt fails the write of
// that message once, leaving the earlier ones stored.
func (f *fakeStore) AppendMessages(_ context.Context, _ string, msgs []*entities.Message) error {
	for _, msg := range msgs {
		if f.stored(msg.ID()) {
			continue
		}
		if f.failAppendAt > 0 && len(f.appended)+1 == f.failAppendAt {
			f.failAppendAt = 0
			return pkgerrors.NewStoreUnavailableError("appendMessage", errors.New("connection reset"))
		}
		f.appended = append(f.appended, msg)
	}
	return nil
}

func (f *fakeStore) stored(id string) bool {
	for _, m := range f.appended {
		if m.ID() == id {
			return true
		}
	}
	return false
}

func (f *fakeStore) UpdateStatus(_ context.Context, _ string, status valueobjects.CaseStatus) error {
	if f.failStatus != nil {
		return f.failStatus
	}
	f.statuses = append(f.statuses, status)
	return nil
}

func caseGraph(t *testing.T, policy conversation.CompletionPolicy) *conversation.Graph {
	t.Helper()
	g, err := conversation.NewGraph(conversation.Definition{
		Name:       "case",
		Title:      "Load Issue",
		Start:      "start",
		OnComplete: policy,
		Steps: []conversation.Step{
			{ID: "start", Prompt: "Has the tour started?", Options: []string{"Yes", "No"},
				Next: map[string]string{"Yes": "load_showing", "No": "tour_not_started"}},
			{ID: "tour_not_started", Prompt: "Please start your tour and check back when ready.", Default: "start"},
			{ID: "load_showing", Prompt: "Thank you. Is the load still showing on your app?",
				Options: []string{"Yes", "No", siteCancelled},
				Next:    map[string]string{"Yes": "load_showing_yes", "No": "load_showing_no", siteCancelled: "vrid_request"}},
			{ID: "load_showing_yes", Prompt: "Please proceed with the delivery as shown in your app.", Default: "start"},
			{ID: "load_showing_no", Prompt: "Thank you for confirming. No further action is needed.", Default: "start"},
			{ID: "vrid_request", Prompt: "Please type VRID affected:", RequiresInput: true,
				Placeholder: "Enter VRID number", Default: "vrid_confirmation"},
			{ID: "vrid_confirmation", Default: "start",
				Prompt: "Thank you for providing the VRID. We will investigate the issue and update your app shortly."},
		},
	})
	require.NoError(t, err)
	return g
}

var (
	driver = valueobjects.Identity{UserID: "D12345", Role: valueobjects.RoleDriver, Email: "driver@example.com", Name: "John Driver", Affiliation: "KozialTrans"}
	admin  = valueobjects.Identity{UserID: "A98765", Role: valueobjects.RoleAdmin, Email: "admin@example.com", Name: "Admin User"}
)

func newSession(t *testing.T, store Store, policy conversation.CompletionPolicy) *CaseSession {
	t.Helper()
	s, err := StartCaseSession(valueobjects.NewCaseID(), caseGraph(t, policy), driver, store)
	require.NoError(t, err)
	return s
}

func runVRIDScenario(t *testing.T, s *CaseSession) int {
	t.Helper()
	produced := 0
	for _, action := range []Action{ChooseOption("Yes"), ChooseOption(siteCancelled), SubmitText("113456789")} {
		msgs, err := s.Advance(context.Background(), action)
		require.NoError(t, err)
		produced += len(msgs)
	}
	return produced
}

func TestStartCaseSession(t *testing.T) {
	s := newSession(t, &fakeStore{}, conversation.CompleteFinalize)

	assert.Equal(t, "start", s.Cursor())
	assert.Equal(t, "Has the tour started?", s.Opening().Text())
	assert.Equal(t, 0, s.TranscriptLen())
	assert.Equal(t, valueobjects.CaseStatusOpen, s.Status())
	require.Len(t, s.GetUncommittedEvents(), 1)
	assert.Equal(t, events.TypeCaseStarted, s.GetUncommittedEvents()[0].GetEventType())
}

func TestStartCaseSessionRequiresIdentity(t *testing.T) {
	_, err := StartCaseSession(valueobjects.NewCaseID(), caseGraph(t, ""), valueobjects.Identity{}, &fakeStore{})
	assert.Error(t, err)
}

func TestVRIDScenario(t *testing.T) {
	// Arrange
	store := &fakeStore{}
	s := newSession(t, store, conversation.CompleteFinalize)

	// Act
	produced := runVRIDScenario(t, s)

	// Assert
	msgs := s.Messages()
	assert.Equal(t, 6, produced)
	require.Len(t, msgs, 6)
	last := msgs[len(msgs)-1]
	assert.Equal(t, valueobjects.SenderSystem, last.Sender())
	assert.Contains(t, last.Text(), "VRID")
	assert.Equal(t, "vrid_confirmation", s.Cursor())
	assert.True(t, s.IsFinalized())

	require.Len(t, store.created, 1)
	assert.Contains(t, store.created[0].Description, "113456789")
	assert.Contains(t, s.Description(), "113456789")
	assert.Equal(t, "Load Issue - "+siteCancelled, store.created[0].Title)
	assert.Equal(t, driver, store.created[0].Driver)
	assert.Equal(t, msgs, store.appended)
}

func TestDescriptionRendering(t *testing.T) {
	s := newSession(t, &fakeStore{}, conversation.CompleteFinalize)
	runVRIDScenario(t, s)

	want := "System Bot: Has the tour started?\n" +
		"John Driver: Yes\n" +
		"System Bot: Thank you. Is the load still showing on your app?\n" +
		"John Driver: " + siteCancelled + "\n" +
		"System Bot: Please type VRID affected:\n" +
		"John Driver: 113456789\n" +
		"System Bot: Thank you for providing the VRID. We will investigate the issue and update your app shortly."
	assert.Equal(t, want, s.Description())
}

func TestAdvanceAfterFinalizationIsRejected(t *testing.T) {
	store := &fakeStore{}
	s := newSession(t, store, conversation.CompleteFinalize)
	runVRIDScenario(t, s)
	before := s.Messages()

	msgs, err := s.Advance(context.Background(), ChooseOption("Yes"))

	assert.ErrorIs(t, err, pkgerrors.ErrSessionClosed)
	assert.Nil(t, msgs)
	assert.Equal(t, before, s.Messages())
	assert.Len(t, store.created, 1)
}

func TestCloseThenReopen(t *testing.T) {
	store := &fakeStore{}
	s := newSession(t, store, conversation.CompleteFinalize)
	runVRIDScenario(t, s)
	transcript := s.Messages()
	cursor := s.Cursor()

	require.NoError(t, s.Close(context.Background(), "resolved", admin))
	assert.Equal(t, valueobjects.CaseStatusClosed, s.Status())
	assert.Equal(t, "resolved", s.CloseReason())

	require.NoError(t, s.Reopen(context.Background(), admin))

	assert.Equal(t, valueobjects.CaseStatusOpen, s.Status())
	assert.Equal(t, transcript, s.Messages())
	assert.Equal(t, cursor, s.Cursor())
	assert.Equal(t, []valueobjects.CaseStatus{valueobjects.CaseStatusClosed, valueobjects.CaseStatusOpen}, store.statuses)

	_, err := s.Advance(context.Background(), ChooseOption("Yes"))
	assert.ErrorIs(t, err, pkgerrors.ErrSessionClosed)
}

func TestStatusTransitionsAreStrict(t *testing.T) {
	s := newSession(t, &fakeStore{}, conversation.CompleteFinalize)

	assert.ErrorIs(t, s.Reopen(context.Background(), admin), pkgerrors.ErrInvalidStatusTransition)
	require.NoError(t, s.Close(context.Background(), "duplicate", admin))
	assert.ErrorIs(t, s.Close(context.Background(), "again", admin), pkgerrors.ErrInvalidStatusTransition)
}

func TestCloseFailureLeavesStatus(t *testing.T) {
	store := &fakeStore{failStatus: pkgerrors.NewStoreUnavailableError("updateStatus", errors.New("timeout"))}
	s := newSession(t, store, conversation.CompleteFinalize)

	err := s.Close(context.Background(), "resolved", admin)

	assert.ErrorIs(t, err, pkgerrors.ErrStoreUnavailable)
	assert.Equal(t, valueobjects.CaseStatusOpen, s.Status())
}

func TestAdvanceOnClosedSession(t *testing.T) {
	s := newSession(t, &fakeStore{}, conversation.CompleteFinalize)
	require.NoError(t, s.Close(context.Background(), "abandoned", admin))

	_, err := s.Advance(context.Background(), ChooseOption("Yes"))

	assert.ErrorIs(t, err, pkgerrors.ErrSessionClosed)
	assert.Equal(t, 0, s.TranscriptLen())
}

func TestPostMessage(t *testing.T) {
	store := &fakeStore{}
	s := newSession(t, store, conversation.CompleteFinalize)
	runVRIDScenario(t, s)

	msg, err := s.PostMessage(context.Background(), admin, "We are looking into it", "")
	require.NoError(t, err)
	assert.Equal(t, valueobjects.SenderStaff, msg.Sender())
	assert.Equal(t, "A98765", msg.SenderID())
	assert.Equal(t, 7, s.TranscriptLen())

	_, err = s.PostMessage(context.Background(), driver, "   ", "")
	assert.ErrorIs(t, err, pkgerrors.ErrEmptyInput)

	withPhoto, err := s.PostMessage(context.Background(), driver, "", "uploads/bol.jpg")
	require.NoError(t, err)
	assert.Equal(t, "uploads/bol.jpg", withPhoto.Attachment())

	require.NoError(t, s.Close(context.Background(), "resolved", admin))
	_, err = s.PostMessage(context.Background(), driver, "hello?", "")
	assert.ErrorIs(t, err, pkgerrors.ErrSessionClosed)
	assert.Equal(t, 8, s.TranscriptLen())
}

func TestEngineErrorsPropagateUnchanged(t *testing.T) {
	store := &fakeStore{}
	s := newSession(t, store, conversation.CompleteFinalize)

	_, err := s.Advance(context.Background(), ChooseOption("Maybe"))
	require.ErrorIs(t, err, pkgerrors.ErrInvalidOption)
	assert.Equal(t, "Maybe", pkgerrors.GetDomainError(err).Details["option"])

	_, err = s.Advance(context.Background(), SubmitText("hello"))
	assert.ErrorIs(t, err, pkgerrors.ErrInputNotExpected)

	assert.Equal(t, "start", s.Cursor())
	assert.Empty(t, store.appended)
}

func TestStoreFailureDoesNotMutateSession(t *testing.T) {
	store := &fakeStore{failAppendAt: 2}
	s := newSession(t, store, conversation.CompleteFinalize)

	msgs, err := s.Advance(context.Background(), ChooseOption("Yes"))

	assert.ErrorIs(t, err, pkgerrors.ErrStoreUnavailable)
	assert.Nil(t, msgs)
	assert.Equal(t, "start", s.Cursor())
	assert.Equal(t, 0, s.TranscriptLen())
}

func messageIDs(msgs []*entities.Message) []string {
	ids := make([]string, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID()
	}
	return ids
}

func TestRetryAfterPartialAppend(t *testing.T) {
	tests := []struct {
		name   string
		reload bool
	}{
		{name: "same session"},
		{name: "reloaded session", reload: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := &fakeStore{failAppendAt: 2}
			s := newSession(t, store, conversation.CompleteFinalize)

			_, err := s.Advance(ctx, ChooseOption("Yes"))
			require.ErrorIs(t, err, pkgerrors.ErrStoreUnavailable)
			require.Len(t, store.appended, 1, "the echo landed before the failure")
			assert.Equal(t, "start", s.Cursor())

			if tt.reload {
				s, err = ReconstructCaseSession(s.Snapshot(), caseGraph(t, conversation.CompleteFinalize), store, store.appended)
				require.NoError(t, err)
			}

			msgs, err := s.Advance(ctx, ChooseOption("Yes"))
			require.NoError(t, err)
			assert.Len(t, msgs, 2)
			assert.Equal(t, "load_showing", s.Cursor())
			assert.Equal(t, messageIDs(s.Messages()), messageIDs(store.appended))
			assert.Equal(t, 1, strings.Count(s.Description(), "John Driver: Yes"))
		})
	}
}

func TestFinalizationRetry(t *testing.T) {
	store := &fakeStore{}
	s := newSession(t, store, conversation.CompleteFinalize)
	_, err := s.Advance(context.Background(), ChooseOption("Yes"))
	require.NoError(t, err)
	_, err = s.Advance(context.Background(), ChooseOption(siteCancelled))
	require.NoError(t, err)

	store.failCreate = pkgerrors.NewStoreUnavailableError("createCase", errors.New("throttled"))
	msgs, err := s.Advance(context.Background(), SubmitText("113456789"))
	assert.ErrorIs(t, err, pkgerrors.ErrStoreUnavailable)
	assert.Len(t, msgs, 2)
	assert.True(t, s.IsCompleted())
	assert.False(t, s.IsFinalized())
	assert.False(t, s.AcceptsActions())

	store.failCreate = nil
	msgs, err = s.Advance(context.Background(), SubmitText("ignored"))
	assert.ErrorIs(t, err, pkgerrors.ErrSessionClosed, "the action is not applied")
	assert.Empty(t, msgs)
	assert.True(t, s.IsFinalized())
	assert.Equal(t, 6, s.TranscriptLen())
	assert.Len(t, store.created, 1)
}

func TestRestartPolicyKeepsSessionRunning(t *testing.T) {
	store := &fakeStore{}
	s := newSession(t, store, conversation.CompleteRestart)

	produced := runVRIDScenario(t, s)

	assert.Equal(t, 7, produced)
	assert.Equal(t, "start", s.Cursor())
	assert.False(t, s.IsFinalized())
	assert.Empty(t, store.created)
	assert.Equal(t, produced, s.TranscriptLen())
}

func TestTranscriptLengthMatchesProducedMessages(t *testing.T) {
	paths := [][]Action{
		{ChooseOption("No")},
		{ChooseOption("Yes"), ChooseOption("Yes")},
		{ChooseOption("Yes"), ChooseOption("No")},
		{ChooseOption("Yes"), ChooseOption(siteCancelled), SubmitText("42")},
	}

	for _, path := range paths {
		s := newSession(t, &fakeStore{}, conversation.CompleteFinalize)
		produced := 0
		var order []*entities.Message
		for _, action := range path {
			msgs, err := s.Advance(context.Background(), action)
			require.NoError(t, err)
			produced += len(msgs)
			order = append(order, msgs...)
		}
		assert.Equal(t, produced, s.TranscriptLen())
		assert.Equal(t, order, s.Messages())
		assert.True(t, s.IsFinalized())
	}
}

func TestMergeDeduplicates(t *testing.T) {
	store := &fakeStore{}
	s := newSession(t, store, conversation.CompleteFinalize)
	msgs, err := s.Advance(context.Background(), ChooseOption("Yes"))
	require.NoError(t, err)

	external := entities.NewMessage("Any update?", valueobjects.SenderEndUser, "D12345", time.Now())

	assert.False(t, s.Merge(msgs[0]))
	assert.True(t, s.Merge(external))
	assert.False(t, s.Merge(external))
	assert.Equal(t, 3, s.TranscriptLen())
	assert.Equal(t, "load_showing", s.Cursor())
}

func TestReconstructCaseSession(t *testing.T) {
	store := &fakeStore{}
	original := newSession(t, store, conversation.CompleteFinalize)
	_, err := original.Advance(context.Background(), ChooseOption("Yes"))
	require.NoError(t, err)

	restored, err := ReconstructCaseSession(original.Snapshot(), caseGraph(t, conversation.CompleteFinalize), store, original.Messages())
	require.NoError(t, err)

	assert.Equal(t, original.Cursor(), restored.Cursor())
	assert.Equal(t, original.Description(), restored.Description())

	_, err = restored.Advance(context.Background(), ChooseOption(siteCancelled))
	require.NoError(t, err)
	assert.Equal(t, "vrid_request", restored.Cursor())
}

func TestReconstructRejectsUnknownCursor(t *testing.T) {
	snap := newSession(t, &fakeStore{}, "").Snapshot()
	snap.Cursor = "retired_step"

	_, err := ReconstructCaseSession(snap, caseGraph(t, ""), &fakeStore{}, nil)

	assert.ErrorIs(t, err, pkgerrors.ErrUnknownStep)
}

func TestSetPriority(t *testing.T) {
	s := newSession(t, &fakeStore{}, "")
	s.MarkEventsAsCommitted()

	s.SetPriority(valueobjects.PriorityHigh)
	s.SetPriority(valueobjects.PriorityHigh)

	assert.Equal(t, valueobjects.PriorityHigh, s.Priority())
	assert.Len(t, s.GetUncommittedEvents(), 1)
}
