package maintenance

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tanchat/pkg/store"
)

func openTestStore(t *testing.T) {
	t.Helper()
	require.NoError(t, store.Open(t.TempDir()))
	t.Cleanup(func() { _ = store.Close() })
}

func seedMessages(t *testing.T, n int) []string {
	t.Helper()
	var ids []string
	for i := 0; i < n; i++ {
		m, err := store.Append("alice", "filler", true)
		require.NoError(t, err)
		ids = append(ids, m.ID)
	}
	return ids
}

func TestResetLogReseeds(t *testing.T) {
	openTestStore(t)
	seedMessages(t, 5)

	require.NoError(t, ResetLog("Tan", "Hello! I'm Tan. Let's get this DB going! :D"))

	msgs, err := store.ListRecent(0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "Tan", msgs[0].Author)
	require.True(t, msgs[0].Complete)
}

func TestResetLogWithoutSeed(t *testing.T) {
	openTestStore(t)
	seedMessages(t, 3)

	require.NoError(t, ResetLog("", ""))

	msgs, err := store.ListRecent(0)
	require.NoError(t, err)
	require.Empty(t, msgs)
}

func TestDeleteLastBatchExactSize(t *testing.T) {
	openTestStore(t)
	ids := seedMessages(t, 7)

	require.NoError(t, DeleteLastBatch(nil, 4))

	msgs, err := store.ListRecent(0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	for _, id := range ids[3:] {
		_, err := store.Get(id)
		require.Error(t, err, "deleted message must be gone")
	}
	for _, id := range ids[:3] {
		_, err := store.Get(id)
		require.NoError(t, err)
	}
}

func TestDeleteLastBatchTooFew(t *testing.T) {
	openTestStore(t)
	ids := seedMessages(t, 2)

	require.NoError(t, DeleteLastBatch(nil, 4))

	msgs, err := store.ListRecent(0)
	require.NoError(t, err)
	require.Len(t, msgs, 2, "undersized batch deletes nothing")

	// The guard replaces the newest targeted row, where the requester is
	// looking; older rows stay untouched.
	guarded, err := store.Get(ids[1])
	require.NoError(t, err)
	require.Equal(t, BatchGuardBody, guarded.Body)

	untouched, err := store.Get(ids[0])
	require.NoError(t, err)
	require.Equal(t, "filler", untouched.Body)
}

func TestDeleteLastBatchExplicitIDs(t *testing.T) {
	openTestStore(t)
	ids := seedMessages(t, 6)

	require.NoError(t, DeleteLastBatch(ids[1:5], 4))

	msgs, err := store.ListRecent(0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
}

func TestDeleteLastBatchExplicitWrongSize(t *testing.T) {
	openTestStore(t)
	ids := seedMessages(t, 6)

	require.NoError(t, DeleteLastBatch(ids[:2], 4))

	msgs, err := store.ListRecent(0)
	require.NoError(t, err)
	require.Len(t, msgs, 6)

	guarded, err := store.Get(ids[1])
	require.NoError(t, err)
	require.Equal(t, BatchGuardBody, guarded.Body)
}

func TestDeleteLastBatchEmptyLog(t *testing.T) {
	openTestStore(t)
	require.Error(t, DeleteLastBatch(nil, 4))
}
