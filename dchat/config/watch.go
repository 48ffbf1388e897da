package config

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// HistoryUpdate carries the live-tunable history settings pushed by the
// config watcher.
type HistoryUpdate struct {
	MaxMessages int
	Strategy    string
}

// Watcher re-reads the config file whenever it changes and pushes the
// history section to the session layer, so editing the file behaves like
// the settings panel: the new limit applies, and re-truncates, immediately.
type Watcher struct {
	path     string
	logger   zerolog.Logger
	onChange func(HistoryUpdate)
	fsw      *fsnotify.Watcher
	done     chan struct{}
}

// NewWatcher starts watching path. onChange runs on every successful
// reload; it must be safe to call from the watcher goroutine.
func NewWatcher(path string, logger zerolog.Logger, onChange func(HistoryUpdate)) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create config watcher: %w", err)
	}
	// Watch the directory: editors and config tooling typically replace the
	// file, which would orphan a watch on the file itself.
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch config dir: %w", err)
	}

	w := &Watcher{
		path:     abs,
		logger:   logger.With().Str("component", "config_watcher").Logger(),
		onChange: onChange,
		fsw:      fsw,
		done:     make(chan struct{}),
	}
	go w.run()
	w.logger.Debug().Str("path", abs).Msg("config watcher started")
	return w, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	err := w.fsw.Close()
	<-w.done
	return err
}

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			w.reload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("config watch error")
		}
	}
}

// reload reads just the watched file with a fresh viper instance; the
// process-wide config is not replaced, only the live-tunable settings move.
func (w *Watcher) reload() {
	v := viper.New()
	v.SetConfigFile(w.path)
	if err := v.ReadInConfig(); err != nil {
		w.logger.Warn().Err(err).Msg("config reload failed")
		return
	}

	update := HistoryUpdate{
		MaxMessages: v.GetInt("dchat.history.max_messages"),
		Strategy:    v.GetString("dchat.history.strategy"),
	}
	if update.MaxMessages == 0 && update.Strategy == "" {
		// File has no history section; nothing to apply.
		return
	}

	w.logger.Info().
		Int("max_messages", update.MaxMessages).
		Str("strategy", update.Strategy).
		Msg("config reloaded")
	w.onChange(update)
}
