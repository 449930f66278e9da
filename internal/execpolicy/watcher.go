package execpolicy

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/agentd-ai/agentd/internal/logging"
)

// reloadDebounce coalesces bursts of file events into one reload.
const reloadDebounce = 200 * time.Millisecond

// Watcher keeps a policy loaded from a directory and reloads it when rule
// files change. A reload that fails validation keeps the previous policy in
// place, so a half-edited rule file never loosens command gating.
type Watcher struct {
	dir     string
	current atomic.Pointer[Policy]
	fsw     *fsnotify.Watcher
}

// NewWatcher loads the initial policy from dir. The initial load must
// succeed; later reload failures only log.
func NewWatcher(dir string) (*Watcher, error) {
	policy, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}

	w := &Watcher{dir: dir}
	w.current.Store(policy)
	return w, nil
}

// Current returns the most recently loaded policy.
func (w *Watcher) Current() *Policy {
	return w.current.Load()
}

// Start begins watching the policy directory until ctx is cancelled. It is
// a no-op if the directory does not exist.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(w.dir); err != nil {
		// Nothing to watch; keep the (empty) initial policy.
		fsw.Close()
		logging.Debug().Str("dir", w.dir).Err(err).Msg("policy dir not watchable")
		return nil
	}
	w.fsw = fsw

	go w.run(ctx)
	return nil
}

func (w *Watcher) run(ctx context.Context) {
	defer w.fsw.Close()

	var pending *time.Timer
	reloadCh := make(chan struct{}, 1)
	scheduleReload := func() {
		if pending != nil {
			pending.Stop()
		}
		pending = time.AfterFunc(reloadDebounce, func() {
			select {
			case reloadCh <- struct{}{}:
			default:
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if strings.HasSuffix(ev.Name, PolicyExtension) {
				scheduleReload()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.Warn().Err(err).Str("dir", w.dir).Msg("policy watcher error")
		case <-reloadCh:
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	policy, err := LoadDir(w.dir)
	if err != nil {
		logging.Error().Err(err).Str("dir", w.dir).Msg("policy reload failed; keeping previous rules")
		return
	}
	w.current.Store(policy)
	logging.Info().Int("rules", policy.Rules()).Str("dir", w.dir).Msg("policy reloaded")
}
