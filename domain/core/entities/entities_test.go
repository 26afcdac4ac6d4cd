package entities

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skozial17/supportchat/domain/core/valueobjects"
	"github.com/Skozial17/supportchat/domain/events"
	pkgerrors "github.com/Skozial17/supportchat/pkg/errors"
)

func TestTranscriptMergeDeduplicates(t *testing.T) {
	now := time.Now()
	first := NewMessage("Has the tour started?", valueobjects.SenderSystem, "", now)
	second := NewMessage("Yes", valueobjects.SenderEndUser, "D12345", now)

	transcript := NewTranscript(first)

	assert.True(t, transcript.Merge(second))
	assert.False(t, transcript.Merge(second))
	assert.False(t, transcript.Merge(first))
	assert.Equal(t, 2, transcript.Len())
	assert.Equal(t, second, transcript.Last())
}

func TestTranscriptRender(t *testing.T) {
	now := time.Now()
	transcript := NewTranscript(
		NewMessage("Please type VRID affected:", valueobjects.SenderSystem, "", now),
		NewMessage("113456789", valueobjects.SenderEndUser, "D12345", now),
	)

	rendered := transcript.Render(func(m *Message) string { return string(m.Sender()) })

	assert.Equal(t, "system: Please type VRID affected:\nuser: 113456789", rendered)
}

func TestMessageJSON(t *testing.T) {
	msg := NewMessage("hello", valueobjects.SenderStaff, "A98765", time.Now().UTC().Truncate(time.Second)).
		WithAttachment("uploads/photo.jpg")

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded Message
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, msg.ID(), decoded.ID())
	assert.Equal(t, "uploads/photo.jpg", decoded.Attachment())
	assert.True(t, msg.CreatedAt().Equal(decoded.CreatedAt()))
}

func TestReconstructMessageRejectsUnknownSender(t *testing.T) {
	_, err := ReconstructMessage("m1", "hi", valueobjects.SenderRole("bot"), "", time.Now(), "")
	assert.Error(t, err)
}

func TestDriverReview(t *testing.T) {
	now := time.Now()

	t.Run("approve pending", func(t *testing.T) {
		driver, err := NewDriverRegistration("D12345", "John Driver", "John@Example.com", "", "KozialTrans", now)
		require.NoError(t, err)
		assert.Equal(t, "pending", driver.PublicStatus())
		assert.Equal(t, "john@example.com", driver.Email())

		require.NoError(t, driver.Approve("A98765", now))

		assert.Equal(t, DriverStatusActive, driver.Status())
		assert.Equal(t, "approved", driver.PublicStatus())
		require.Len(t, driver.GetUncommittedEvents(), 2)
		assert.Equal(t, events.TypeDriverApproved, driver.GetUncommittedEvents()[1].GetEventType())
	})

	t.Run("reject twice fails", func(t *testing.T) {
		driver, err := NewDriverRegistration("D2", "Jane", "jane@example.com", "", "", now)
		require.NoError(t, err)

		require.NoError(t, driver.Reject("A98765", "unknown company", now))
		err = driver.Reject("A98765", "again", now)

		assert.ErrorIs(t, err, pkgerrors.ErrDriverNotPending)
		assert.Equal(t, "unknown", driver.PublicStatus())
	})

	t.Run("invalid email", func(t *testing.T) {
		_, err := NewDriverRegistration("D3", "Jane", "not-an-email", "", "", now)
		assert.Error(t, err)
	})
}
