package window

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

func TestSelectChronologicalAndBounded(t *testing.T) {
	openTestStore(t)
	for i := 0; i < 7; i++ {
		_, err := store.Append("alice", "m", true)
		require.NoError(t, err)
	}
	for _, size := range []int{1, 3, 7, 50} {
		msgs, err := Select(size)
		require.NoError(t, err)
		want := size
		if want > 7 {
			want = 7
		}
		require.Len(t, msgs, want)
		for i := 1; i < len(msgs); i++ {
			require.Greater(t, msgs[i].TS, msgs[i-1].TS, "window must be strictly increasing by creation time")
		}
	}
}

func TestSelectBeforeExcludesCutoff(t *testing.T) {
	openTestStore(t)
	var ids []string
	for i := 0; i < 5; i++ {
		m, err := store.Append("alice", "m", true)
		require.NoError(t, err)
		ids = append(ids, m.ID)
	}
	anchor, err := store.Get(ids[3])
	require.NoError(t, err)

	msgs, err := SelectBefore(anchor.TS, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, ids[1], msgs[0].ID)
	require.Equal(t, ids[2], msgs[1].ID)
}

func TestSelectCompleteFiltersPlaceholders(t *testing.T) {
	openTestStore(t)
	_, err := store.Append("alice", "hi", true)
	require.NoError(t, err)
	_, err = store.Append("TanAI", "...", false)
	require.NoError(t, err)

	msgs, err := SelectComplete(10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "alice", msgs[0].Author)
}

func TestSelectCompleteEmptyWindow(t *testing.T) {
	openTestStore(t)
	_, err := store.Append("TanAI", "...", false)
	require.NoError(t, err)

	_, err = SelectComplete(10)
	require.ErrorIs(t, err, ErrNoUsableContext)
}
