package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"lautenbacher.net/ledfx/util"
)

const DefaultDebounce = 200 * time.Millisecond

// Watcher reports changes of a single config file. The parent directory
// is watched so editors that replace the file are noticed too. Bursts
// of events within the debounce interval are reported once.
type Watcher struct {
	fsw      *fsnotify.Watcher
	file     string
	debounce time.Duration
	changes  *util.AtomicEvent[time.Time]
	done     chan struct{}
	finished chan struct{}
	once     sync.Once
}

func NewWatcher(cfile string, debounce time.Duration) (*Watcher, error) {
	abs, err := filepath.Abs(cfile)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating config watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w := &Watcher{
		fsw:      fsw,
		file:     abs,
		debounce: debounce,
		changes:  util.NewAtomicEvent[time.Time](),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Changes signals once per debounced burst of modifications.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes.Channel()
}

// LastChange is the time the most recent change was reported.
func (w *Watcher) LastChange() time.Time {
	return w.changes.Value()
}

func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.fsw.Close()
		<-w.finished
	})
	return err
}

func (w *Watcher) loop() {
	defer close(w.finished)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.file {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				slog.Debug("Config file event", "file", ev.Name, "op", ev.Op.String())
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("Config watcher error", "error", err)
		case <-timer.C:
			slog.Info("Config file changed", "file", w.file)
			w.changes.Send(time.Now())
		}
	}
}
