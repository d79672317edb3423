package session

import (
	"sync"
	"testing"
	"time"

	"github.com/danverh/support-chat/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_CreateAndResolve(t *testing.T) {
	s := NewStore()

	id1 := s.Create("u1")
	id2 := s.Create("u1")
	assert.NotEqual(t, id1, id2)

	t.Run("existing id resolves to itself", func(t *testing.T) {
		got, created := s.ResolveOrCreate("u1", id1.String())
		assert.Equal(t, id1, got)
		assert.False(t, created)
	})

	t.Run("unknown id creates a new session", func(t *testing.T) {
		got, created := s.ResolveOrCreate("u1", uuid.NewString())
		assert.True(t, created)
		assert.NotEqual(t, id1, got)
		assert.NotEqual(t, id2, got)
	})

	t.Run("empty id creates a new session", func(t *testing.T) {
		_, created := s.ResolveOrCreate("u1", "")
		assert.True(t, created)
	})

	t.Run("garbage id creates a new session", func(t *testing.T) {
		_, created := s.ResolveOrCreate("u1", "not-a-uuid")
		assert.True(t, created)
	})
}

func TestStore_AppendAndHistory(t *testing.T) {
	s := NewStore()
	id := s.Create("u1")

	require.NoError(t, s.Append(id, domain.Message{Role: domain.RoleUser, Content: "hello"}))
	require.NoError(t, s.Append(id, domain.Message{Role: domain.RoleAssistant, Content: "hi"}))

	sess, err := s.History("u1", id)
	require.NoError(t, err)
	require.Len(t, sess.History, 2)
	assert.Equal(t, domain.RoleUser, sess.History[0].Role)
	assert.Equal(t, "hello", sess.History[0].Content)
	assert.Equal(t, domain.RoleAssistant, sess.History[1].Role)
	assert.Equal(t, "hi", sess.History[1].Content)
	assert.Equal(t, "u1", sess.Owner)
	assert.False(t, sess.LastActivity.Before(sess.CreatedAt))
}

func TestStore_HistoryIsACopy(t *testing.T) {
	s := NewStore()
	id := s.Create("u1")
	require.NoError(t, s.Append(id, domain.Message{Role: domain.RoleUser, Content: "hello"}))

	sess, err := s.History("u1", id)
	require.NoError(t, err)
	sess.History[0].Content = "mutated"

	again, err := s.History("u1", id)
	require.NoError(t, err)
	assert.Equal(t, "hello", again.History[0].Content)
}

func TestStore_OwnershipChecks(t *testing.T) {
	s := NewStore()
	id := s.Create("u1")

	t.Run("history by wrong owner is forbidden", func(t *testing.T) {
		_, err := s.History("u2", id)
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("delete by wrong owner is forbidden", func(t *testing.T) {
		err := s.Delete("u2", id)
		assert.ErrorIs(t, err, domain.ErrForbidden)

		_, err = s.History("u1", id)
		assert.NoError(t, err)
	})

	t.Run("delete then history is not found", func(t *testing.T) {
		require.NoError(t, s.Delete("u1", id))
		_, err := s.History("u1", id)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("unknown session is not found", func(t *testing.T) {
		_, err := s.History("u1", uuid.New())
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestStore_AppendMissingSession(t *testing.T) {
	s := NewStore()
	err := s.Append(uuid.New(), domain.Message{Role: domain.RoleUser, Content: "hello"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_ListByOwner(t *testing.T) {
	s := NewStore()
	a := s.Create("u1")
	b := s.Create("u1")
	s.Create("u2")

	require.NoError(t, s.Append(a, domain.Message{Role: domain.RoleUser, Content: "x"}))

	infos := s.ListByOwner("u1")
	require.Len(t, infos, 2)

	ids := map[uuid.UUID]int{}
	for _, info := range infos {
		ids[info.SessionID] = info.MessageCount
	}
	assert.Equal(t, 1, ids[a])
	assert.Equal(t, 0, ids[b])

	assert.Empty(t, s.ListByOwner("u3"))
}

func TestStore_Stats(t *testing.T) {
	s := NewStore()
	s.Create("u1")
	s.Create("u1")
	s.Create("u2")

	stats := s.Stats()
	assert.Equal(t, 3, stats.TotalSessions)
	assert.Equal(t, 2, stats.UniqueUsers)
	assert.Equal(t, 2, stats.SessionsPerUser["u1"])
	assert.Equal(t, 1, stats.SessionsPerUser["u2"])
}

func TestStore_ConcurrentAppends(t *testing.T) {
	s := NewStore()
	id := s.Create("u1")

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_ = s.Append(id, domain.Message{Role: domain.RoleUser, Content: "m"})
		}()
	}
	wg.Wait()

	sess, err := s.History("u1", id)
	require.NoError(t, err)
	assert.Len(t, sess.History, n)
}

func TestStore_EvictIdle(t *testing.T) {
	s := NewStore()
	old := s.Create("u1")
	fresh := s.Create("u1")

	s.mu.Lock()
	s.sessions[old].lastActivity = time.Now().Add(-2 * time.Hour)
	s.mu.Unlock()

	evicted := s.EvictIdle(time.Hour)
	assert.Equal(t, 1, evicted)

	_, err := s.History("u1", old)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.History("u1", fresh)
	assert.NoError(t, err)
}
