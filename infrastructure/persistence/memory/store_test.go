package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skozial17/supportchat/application/ports"
	"github.com/Skozial17/supportchat/domain/core/aggregates"
	"github.com/Skozial17/supportchat/domain/core/entities"
	"github.com/Skozial17/supportchat/domain/core/valueobjects"
	pkgerrors "github.com/Skozial17/supportchat/pkg/errors"
)

func snapshot(id valueobjects.CaseID, driverID, title string, version int, updated time.Time) aggregates.CaseSnapshot {
	return aggregates.CaseSnapshot{
		ID:        id,
		Flow:      "case",
		Cursor:    "start",
		Status:    valueobjects.CaseStatusOpen,
		Priority:  valueobjects.PriorityMedium,
		Driver:    valueobjects.Identity{UserID: driverID, Role: valueobjects.RoleDriver, Name: "Jane " + driverID},
		Title:     title,
		CreatedAt: updated,
		UpdatedAt: updated,
		Version:   version,
	}
}

func TestStore_AppendIsIdempotentPerMessageID(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	id := valueobjects.NewCaseID()
	require.NoError(t, store.Save(ctx, snapshot(id, "d1", "t", 1, time.Now())))

	msg := entities.NewMessage("hello", valueobjects.SenderEndUser, "d1", time.Now())
	require.NoError(t, store.AppendMessage(ctx, id.String(), msg))
	require.NoError(t, store.AppendMessage(ctx, id.String(), msg))

	record, err := store.Get(ctx, id.String())
	require.NoError(t, err)
	assert.Len(t, record.Messages, 1)
}

func TestStore_AppendMessagesSkipsStoredIDs(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	id := valueobjects.NewCaseID()
	require.NoError(t, store.Save(ctx, snapshot(id, "d1", "t", 1, time.Now())))

	echo := entities.NewMessage("Yes", valueobjects.SenderEndUser, "d1", time.Now())
	prompt := entities.NewMessage("Is the load still showing?", valueobjects.SenderSystem, "", time.Now())
	require.NoError(t, store.AppendMessage(ctx, id.String(), echo))
	require.NoError(t, store.AppendMessages(ctx, id.String(), []*entities.Message{echo, prompt}))

	record, err := store.Get(ctx, id.String())
	require.NoError(t, err)
	require.Len(t, record.Messages, 2)
	assert.Equal(t, echo.ID(), record.Messages[0].ID())
	assert.Equal(t, prompt.ID(), record.Messages[1].ID())
}

func TestStore_SaveRejectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	id := valueobjects.NewCaseID()

	require.NoError(t, store.Save(ctx, snapshot(id, "d1", "t", 3, time.Now())))
	require.NoError(t, store.Save(ctx, snapshot(id, "d1", "t", 3, time.Now())))

	err := store.Save(ctx, snapshot(id, "d1", "t", 2, time.Now()))
	assert.ErrorIs(t, err, pkgerrors.ErrConcurrentModification)
}

func TestStore_GetUnknownCase(t *testing.T) {
	_, err := NewStore().Get(context.Background(), "case-missing")
	assert.ErrorIs(t, err, pkgerrors.ErrCaseNotFound)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestStore_List(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	ids := make([]valueobjects.CaseID, 4)
	for i := range ids {
		ids[i] = valueobjects.NewCaseID()
	}
	require.NoError(t, store.Save(ctx, snapshot(ids[0], "d1", "Tour - Missing VRID", 1, base)))
	require.NoError(t, store.Save(ctx, snapshot(ids[1], "d1", "Tour - Late load", 1, base.Add(time.Minute))))
	require.NoError(t, store.Save(ctx, snapshot(ids[2], "d2", "Tour - App crash", 1, base.Add(2*time.Minute))))
	closed := snapshot(ids[3], "d2", "Closed one", 1, base.Add(3*time.Minute))
	closed.Status = valueobjects.CaseStatusClosed
	require.NoError(t, store.Save(ctx, closed))

	tests := []struct {
		name     string
		criteria ports.CaseCriteria
		want     []valueobjects.CaseID
	}{
		{"all newest first", ports.CaseCriteria{}, []valueobjects.CaseID{ids[3], ids[2], ids[1], ids[0]}},
		{"by driver", ports.CaseCriteria{DriverID: "d1"}, []valueobjects.CaseID{ids[1], ids[0]}},
		{"by status", ports.CaseCriteria{Status: "closed"}, []valueobjects.CaseID{ids[3]}},
		{"search title", ports.CaseCriteria{Search: "vrid"}, []valueobjects.CaseID{ids[0]}},
		{"search driver name", ports.CaseCriteria{Search: "jane d2", Status: "open"}, []valueobjects.CaseID{ids[2]}},
		{"search case id", ports.CaseCriteria{Search: ids[1].String()}, []valueobjects.CaseID{ids[1]}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := store.List(ctx, tt.criteria)
			require.NoError(t, err)
			got := make([]valueobjects.CaseID, 0, len(page.Cases))
			for _, c := range page.Cases {
				got = append(got, c.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("pagination", func(t *testing.T) {
		first, err := store.List(ctx, ports.CaseCriteria{Limit: 3})
		require.NoError(t, err)
		assert.Len(t, first.Cases, 3)
		require.NotEmpty(t, first.NextCursor)

		second, err := store.List(ctx, ports.CaseCriteria{Limit: 3, Cursor: first.NextCursor})
		require.NoError(t, err)
		assert.Len(t, second.Cases, 1)
		assert.Empty(t, second.NextCursor)
	})
}

func TestStore_SubscribeReplaysThenFollows(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	store := NewStore()
	caseID := valueobjects.NewCaseID().String()

	first := entities.NewMessage("one", valueobjects.SenderSystem, "", time.Now())
	require.NoError(t, store.AppendMessage(ctx, caseID, first))

	stream, err := store.Subscribe(ctx, caseID)
	require.NoError(t, err)
	defer stream.Close()

	got, err := stream.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID(), got.ID())

	second := entities.NewMessage("two", valueobjects.SenderEndUser, "d1", time.Now())
	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = store.AppendMessage(context.Background(), caseID, second)
	}()

	got, err = stream.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID(), got.ID())

	require.NoError(t, stream.Close())
	_, err = stream.Next(ctx)
	assert.ErrorIs(t, err, ports.ErrStreamClosed)
}

func TestStore_CreateCaseAndStatus(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	id := valueobjects.NewCaseID()

	ref, err := store.CreateCase(ctx, aggregates.CaseAttributes{CaseID: id, Title: "T", Status: valueobjects.CaseStatusOpen})
	require.NoError(t, err)
	assert.Equal(t, id.String(), ref)

	require.NoError(t, store.UpdateStatus(ctx, ref, valueobjects.CaseStatusClosed))
	rec, ok := store.CaseRecord(ref)
	require.True(t, ok)
	assert.Equal(t, valueobjects.CaseStatusClosed, rec.Status)

	err = store.UpdateStatus(ctx, "case-unknown", valueobjects.CaseStatusClosed)
	assert.ErrorIs(t, err, pkgerrors.ErrCaseNotFound)
}

func TestLocker(t *testing.T) {
	ctx := context.Background()
	locker := NewLocker()

	held, err := locker.Acquire(ctx, "CASE#1", "a", time.Second, 0)
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, "CASE#1", "b", time.Second, 20*time.Millisecond)
	assert.ErrorIs(t, err, pkgerrors.ErrConcurrentModification)

	require.NoError(t, held.Release(ctx))
	again, err := locker.Acquire(ctx, "CASE#1", "b", time.Second, 0)
	require.NoError(t, err)
	assert.NoError(t, again.Release(ctx))
}

func TestDriverRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewDriverRepository()
	now := time.Now()

	first, err := entities.NewDriverRegistration("11111111-1111-1111-1111-111111111111", "Jane", "Jane@Example.com", "", "Acme", now)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, first))

	byEmail, err := repo.GetByEmail(ctx, "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, first.ID(), byEmail.ID())

	dup, err := entities.NewDriverRegistration("22222222-2222-2222-2222-222222222222", "Other", "jane@example.com", "", "", now)
	require.NoError(t, err)
	assert.ErrorIs(t, repo.Save(ctx, dup), pkgerrors.ErrDriverAlreadyRegistered)

	pending, err := repo.ListByStatus(ctx, entities.DriverStatusPending, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	_, err = repo.GetByID(ctx, "missing")
	assert.True(t, pkgerrors.IsNotFound(err))
}
