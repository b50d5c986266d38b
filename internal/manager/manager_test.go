package manager

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dashcast/dashcast/internal/session"
)

// stallFetcher never resolves a URL, keeping every session parked in a
// manifest-fetch-error retry loop. That's all these registry tests need:
// they exercise add/remove/list/lookup, not the pipeline itself.
type stallFetcher struct{}

func (stallFetcher) Fetch(_ context.Context, url string, _ map[string]string) ([]byte, error) {
	return nil, fmt.Errorf("stall fetcher: %s unreachable", url)
}

func newTestManager(t *testing.T, maxSessions int) *Manager {
	t.Helper()
	return New(t.TempDir(), stallFetcher{}, nil, "mp4decrypt", maxSessions)
}

func TestManager_AddGetRemove(t *testing.T) {
	mgr := newTestManager(t, 10)
	ctx := context.Background()

	sess, err := mgr.AddStream(ctx, session.Config{MPDURL: "https://example.com/s.mpd"})
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID())

	got, ok := mgr.Get(sess.ID())
	assert.True(t, ok)
	assert.Equal(t, sess.ID(), got.ID())

	path, ok := mgr.OutputPath(sess.ID())
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(mgr.baseDir, sess.ID()), path)

	assert.True(t, mgr.RemoveStream(sess.ID()))
	_, ok = mgr.Get(sess.ID())
	assert.False(t, ok)
	assert.False(t, mgr.RemoveStream(sess.ID()), "removing twice should report not-found")
}

func TestManager_RejectsInvalidConfigSynchronously(t *testing.T) {
	mgr := newTestManager(t, 10)
	_, err := mgr.AddStream(context.Background(), session.Config{})
	assert.Error(t, err)
	assert.Empty(t, mgr.List())
}

func TestManager_EnforcesMaxSessions(t *testing.T) {
	mgr := newTestManager(t, 1)
	ctx := context.Background()

	_, err := mgr.AddStream(ctx, session.Config{MPDURL: "https://example.com/a.mpd"})
	require.NoError(t, err)

	_, err = mgr.AddStream(ctx, session.Config{MPDURL: "https://example.com/b.mpd"})
	assert.Error(t, err)
}

func TestManager_ListReflectsActiveSessions(t *testing.T) {
	mgr := newTestManager(t, 10)
	ctx := context.Background()

	_, err := mgr.AddStream(ctx, session.Config{MPDURL: "https://example.com/a.mpd"})
	require.NoError(t, err)
	_, err = mgr.AddStream(ctx, session.Config{MPDURL: "https://example.com/b.mpd"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(mgr.List()) == 2
	}, time.Second, 5*time.Millisecond)

	mgr.Shutdown()
}
