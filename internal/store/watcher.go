package store

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher calls onChange when one of the watched store files is written.
// The directory is watched rather than the files, so atomic replacements
// and files created after the watch starts are seen.
type Watcher struct {
	watcher  *fsnotify.Watcher
	files    map[string]bool
	onChange func(string)
	logger   zerolog.Logger
	delay    time.Duration
	mu       sync.RWMutex
	done     chan struct{}
}

// NewWatcher watches the named files of s.
func NewWatcher(s *FileStore, logger zerolog.Logger, onChange func(string), names ...string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(s.dir); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{
		watcher:  fw,
		files:    make(map[string]bool, len(names)),
		onChange: onChange,
		logger:   logger,
		delay:    100 * time.Millisecond,
		done:     make(chan struct{}),
	}
	for _, n := range names {
		w.files[filepath.Base(n)] = true
	}

	go w.watch()
	return w, nil
}

func (w *Watcher) watch() {
	debounce := make(map[string]*time.Timer)
	var dmu sync.Mutex

	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			name := filepath.Base(ev.Name)
			w.mu.RLock()
			watching := w.files[name]
			w.mu.RUnlock()
			if !watching {
				continue
			}

			dmu.Lock()
			if t, exists := debounce[name]; exists {
				t.Stop()
			}
			path := ev.Name
			debounce[name] = time.AfterFunc(w.delay, func() {
				dmu.Lock()
				delete(debounce, name)
				dmu.Unlock()
				if w.onChange != nil {
					w.onChange(path)
				}
			})
			dmu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("file watch error")

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
