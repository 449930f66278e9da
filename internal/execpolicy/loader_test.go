package execpolicy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDirMergesSortedFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "10-base.policy"), []byte(`
rules:
  - pattern: [git]
    decision: prompt
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20-extra.policy"), []byte(`
rules:
  - pattern: [git, push]
    decision: forbidden
`), 0o644))
	// Non-policy files are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("notes"), 0o644))

	policy, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, policy.Rules())
	assert.Equal(t, DecisionForbidden, policy.Check([]string{"git", "push"}).Decision)
}

func TestLoadDirMissingIsEmpty(t *testing.T) {
	policy, err := LoadDir(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Equal(t, 0, policy.Rules())
}

func TestLoadDirFailsAtomically(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ok.policy"), []byte(`
rules:
  - pattern: [ls]
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "zz-bad.policy"), []byte(`
rules:
  - pattern: [git, status]
    match: [git push]
`), 0o644))

	_, err := LoadDir(dir)
	require.Error(t, err, "a single invalid file must fail the whole load")
}

func TestWatcherReload(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir)
	require.NoError(t, err)
	assert.Equal(t, 0, w.Current().Rules())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.policy"), []byte(`
rules:
  - pattern: [kubectl]
    decision: prompt
`), 0o644))

	require.Eventually(t, func() bool {
		return w.Current().Rules() == 1
	}, 3*time.Second, 25*time.Millisecond, "watcher should pick up the new rule file")

	// An invalid edit must keep the previous policy.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.policy"), []byte(`
rules:
  - pattern: []
`), 0o644))
	time.Sleep(2 * reloadDebounce)
	assert.Equal(t, 1, w.Current().Rules())
}
