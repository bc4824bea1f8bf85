package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Source loads a Document from a JSON file on disk and can watch it for
// changes, reloading the Catalog on every modification: an
// fsnotify.Watcher on the file's parent directory (editors and
// config-map rewrites commonly replace the file via rename rather than
// an in-place write, which fsnotify only reports on the containing
// directory), falling back to stat-based mtime polling if the watcher
// fails to start — e.g. a filesystem without inotify support.
type Source struct {
	Path          string
	PollInterval  time.Duration
	Logger        *zap.Logger

	mu      sync.Mutex
	lastMod time.Time
}

// NewSource returns a Source for path. interval (default 5s) is the
// poll period Watch uses when it falls back to mtime polling.
func NewSource(path string, interval time.Duration, logger *zap.Logger) *Source {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{Path: path, PollInterval: interval, Logger: logger}
}

// LoadOnce reads the file once and loads it into cat.
func (s *Source) LoadOnce(cat *Catalog) error {
	doc, _, err := s.read()
	if err != nil {
		return err
	}
	return cat.Load(doc)
}

func (s *Source) read() (*Document, time.Time, error) {
	info, err := os.Stat(s.Path)
	if err != nil {
		return nil, time.Time{}, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, time.Time{}, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, time.Time{}, err
	}
	return &doc, info.ModTime(), nil
}

// Watch reloads cat whenever s.Path changes, until ctx is cancelled.
// It prefers an fsnotify watch on the file's parent directory; if the
// watcher fails to start it falls back to stat-based mtime polling on
// PollInterval instead. Reload failures are logged and do not stop the
// watch loop — the previous snapshot keeps serving.
func (s *Source) Watch(ctx context.Context, cat *Catalog) {
	if err := s.watchNotify(ctx, cat); err != nil {
		s.Logger.Warn("fsnotify watch unavailable, falling back to polling",
			zap.String("path", s.Path), zap.Error(err))
		s.watchPoll(ctx, cat)
	}
}

// watchNotify watches s.Path's parent directory for create/write/rename
// events naming s.Path. Watching the directory rather than the file
// itself catches the common "write a temp file, then rename over the
// target" reload pattern, which fsnotify does not report if the
// watch is placed on the file directly (the original inode is gone).
func (s *Source) watchNotify(ctx context.Context, cat *Catalog) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(s.Path)
	if err := watcher.Add(dir); err != nil {
		return err
	}

	debounce := time.NewTimer(0)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return errors.New("catalog: fsnotify event channel closed")
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.Path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			debounce.Reset(50 * time.Millisecond)
		case <-debounce.C:
			s.pollOnce(cat)
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return errors.New("catalog: fsnotify error channel closed")
			}
			s.Logger.Warn("catalog fsnotify error", zap.String("path", s.Path), zap.Error(watchErr))
		}
	}
}

// watchPoll is the stat-based mtime polling fallback used when an
// fsnotify watch cannot be established.
func (s *Source) watchPoll(ctx context.Context, cat *Catalog) {
	ticker := time.NewTicker(s.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pollOnce(cat)
		}
	}
}

func (s *Source) pollOnce(cat *Catalog) {
	doc, modTime, err := s.read()
	if err != nil {
		s.Logger.Warn("catalog poll failed", zap.String("path", s.Path), zap.Error(err))
		return
	}

	s.mu.Lock()
	unchanged := !modTime.After(s.lastMod)
	s.mu.Unlock()
	if unchanged {
		return
	}

	if err := cat.Load(doc); err != nil {
		s.Logger.Error("catalog reload rejected, keeping previous snapshot",
			zap.String("path", s.Path), zap.Error(err))
		return
	}

	s.mu.Lock()
	s.lastMod = modTime
	s.mu.Unlock()
	s.Logger.Info("catalog reloaded", zap.String("path", s.Path), zap.Time("modified", modTime))
}
