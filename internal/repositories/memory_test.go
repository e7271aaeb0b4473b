package repositories

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conversation-service/internal/idgen"
	"conversation-service/internal/models"
)

func TestMemoryStoreCreateOrGetIsOrderIndependent(t *testing.T) {
	store := NewMemoryStore(idgen.MustSnowflake(1))
	ctx := context.Background()

	first, created, err := store.CreateOrGetThread(ctx, "recruiter1", "candidate1")
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := store.CreateOrGetThread(ctx, "candidate1", "recruiter1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, []string{"recruiter1"}, second.AcceptedBy)
}

func TestMemoryStoreConcurrentCreateYieldsOneThread(t *testing.T) {
	store := NewMemoryStore(idgen.MustSnowflake(1))
	ctx := context.Background()

	ids := make(chan int64, 20)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := "a", "b"
			if i%2 == 0 {
				a, b = b, a
			}
			thread, _, err := store.CreateOrGetThread(ctx, a, b)
			assert.NoError(t, err)
			ids <- thread.ID
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := map[int64]struct{}{}
	for id := range ids {
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, 1)
}

func TestMemoryStoreConcurrentAppendsAreTotallyOrdered(t *testing.T) {
	store := NewMemoryStore(idgen.MustSnowflake(1))
	ctx := context.Background()
	thread, _, err := store.CreateOrGetThread(ctx, "a", "b")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, sender := range []string{"a", "b"} {
		wg.Add(1)
		go func(sender string) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_, err := store.AppendMessage(ctx, models.Message{ThreadID: thread.ID, SenderID: sender, Content: fmt.Sprintf("%s-%d", sender, i)})
				assert.NoError(t, err)
			}
		}(sender)
	}
	wg.Wait()

	msgs, err := store.ListMessages(ctx, thread.ID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 200)
	for i := 1; i < len(msgs); i++ {
		assert.True(t, msgs[i-1].CreatedAt.Before(msgs[i].CreatedAt), "created_at must strictly increase")
		assert.True(t, msgs[i-1].Before(msgs[i]))
	}
}

func TestMemoryStoreConcurrentArchiveAndMuteDoNotClobber(t *testing.T) {
	store := NewMemoryStore(idgen.MustSnowflake(1))
	ctx := context.Background()
	thread, _, err := store.CreateOrGetThread(ctx, "a", "b")
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := store.ToggleArchived(ctx, thread.ID, "a")
		assert.NoError(t, err)
	}()
	go func() {
		defer wg.Done()
		_, err := store.ToggleMuted(ctx, thread.ID, "b")
		assert.NoError(t, err)
	}()
	wg.Wait()

	got, err := store.GetThread(ctx, thread.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, got.ArchivedBy)
	assert.Equal(t, []string{"b"}, got.MutedBy)
}

func TestMemoryStoreListMessagesLatestN(t *testing.T) {
	store := NewMemoryStore(idgen.MustSnowflake(1))
	ctx := context.Background()
	thread, _, _ := store.CreateOrGetThread(ctx, "a", "b")
	for i := 0; i < 5; i++ {
		_, err := store.AppendMessage(ctx, models.Message{ThreadID: thread.ID, SenderID: "a", Content: fmt.Sprint(i)})
		require.NoError(t, err)
	}

	msgs, err := store.ListMessages(ctx, thread.ID, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "3", msgs[0].Content)
	assert.Equal(t, "4", msgs[1].Content)
}

func TestMemoryStoreFirstContactTracking(t *testing.T) {
	store := NewMemoryStore(idgen.MustSnowflake(1))
	ctx := context.Background()
	thread, _, _ := store.CreateOrGetThread(ctx, "a", "b")

	res, err := store.AppendMessage(ctx, models.Message{ThreadID: thread.ID, SenderID: "a", Content: "1"})
	require.NoError(t, err)
	assert.True(t, res.FirstContact)

	res, err = store.AppendMessage(ctx, models.Message{ThreadID: thread.ID, SenderID: "a", Content: "2"})
	require.NoError(t, err)
	assert.False(t, res.FirstContact)

	res, err = store.AppendMessage(ctx, models.Message{ThreadID: thread.ID, SenderID: "b", Content: "3"})
	require.NoError(t, err)
	assert.True(t, res.FirstContact)
}

func TestMemoryStoreDeleteRemovesMessagesAndFreesPair(t *testing.T) {
	store := NewMemoryStore(idgen.MustSnowflake(1))
	ctx := context.Background()
	thread, _, _ := store.CreateOrGetThread(ctx, "a", "b")
	_, err := store.AppendMessage(ctx, models.Message{ThreadID: thread.ID, SenderID: "a", Content: "x"})
	require.NoError(t, err)

	require.NoError(t, store.DeleteThread(ctx, thread.ID))
	_, err = store.ListMessages(ctx, thread.ID, 0)
	assert.ErrorIs(t, err, ErrThreadNotFound)
	assert.ErrorIs(t, store.DeleteThread(ctx, thread.ID), ErrThreadNotFound)

	again, created, err := store.CreateOrGetThread(ctx, "b", "a")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, thread.ID, again.ID)
}

func TestMemoryStoreReturnedThreadsAreCopies(t *testing.T) {
	store := NewMemoryStore(idgen.MustSnowflake(1))
	ctx := context.Background()
	thread, _, _ := store.CreateOrGetThread(ctx, "a", "b")
	thread.AcceptedBy[0] = "mallory"

	got, err := store.GetThread(ctx, thread.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, got.AcceptedBy)
}

func TestMemoryPreferenceRepoMerge(t *testing.T) {
	repo := NewMemoryPreferenceRepo()
	ctx := context.Background()

	require.NoError(t, repo.MergePreferences(ctx, "u", models.Preferences{models.KindProfileViewed: false}))
	require.NoError(t, repo.MergePreferences(ctx, "u", models.Preferences{models.KindEndorsementReceived: false}))
	require.NoError(t, repo.MergePreferences(ctx, "u", models.Preferences{models.KindProfileViewed: true}))

	prefs, err := repo.GetPreferences(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, models.Preferences{
		models.KindProfileViewed:       true,
		models.KindEndorsementReceived: false,
	}, prefs)
}
