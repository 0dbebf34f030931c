// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package inbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/paper-reader/internal/logger"
	"github.com/paper-reader/internal/papers"
)

const (
	// DefaultDelay is how long a file must stay quiet before it is uploaded.
	DefaultDelay = 2 * time.Second

	processedDir = "processed"
	failedDir    = "failed"
)

// Uploader accepts a dropped PDF.
type Uploader interface {
	Upload(ctx context.Context, filename string, data []byte, source string) (*papers.UploadResult, error)
}

// Watcher uploads PDFs dropped into a directory. Handled files move to
// processed/, rejected ones to failed/.
type Watcher struct {
	dir       string
	uploader  Uploader
	debouncer *debouncer
	fsw       *fsnotify.Watcher
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New creates a watcher on dir, creating it and its subdirectories if needed.
func New(dir string, uploader Uploader, delay time.Duration) (*Watcher, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve inbox path: %w", err)
	}
	for _, d := range []string{abs, filepath.Join(abs, processedDir), filepath.Join(abs, failedDir)} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create inbox directory: %w", err)
		}
	}
	if delay <= 0 {
		delay = DefaultDelay
	}

	w := &Watcher{dir: abs, uploader: uploader}
	w.debouncer = newDebouncer(delay, w.handle)
	return w, nil
}

// Start watches the inbox until ctx is cancelled or Stop is called. Files
// already present are queued too.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fsw.Add(w.dir); err != nil {
		fsw.Close()
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	w.fsw = fsw
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.processEvents()

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		logger.Warnf("[INBOX] failed to scan %s: %v", w.dir, err)
	}
	for _, e := range entries {
		if !e.IsDir() && isCandidate(e.Name()) {
			w.debouncer.trigger(filepath.Join(w.dir, e.Name()))
		}
	}

	logger.Printf("[INBOX] watching %s", w.dir)
	return nil
}

// Stop ends watching and drops pending files; they are picked up on the next
// Start.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.debouncer.stop()
	if w.fsw != nil {
		if err := w.fsw.Close(); err != nil {
			logger.Warnf("[INBOX] error closing watcher: %v", err)
		}
	}
	w.wg.Wait()
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				if isCandidate(filepath.Base(event.Name)) {
					w.debouncer.trigger(event.Name)
				}
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.Errorf("[INBOX] watcher error: %v", err)
		}
	}
}

// isCandidate skips hidden, temporary and non-PDF files.
func isCandidate(name string) bool {
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
		return false
	}
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}

func (w *Watcher) handle(path string) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		logger.Errorf("[INBOX] failed to read %s: %v", path, err)
		return
	}

	name := filepath.Base(path)
	res, err := w.uploader.Upload(w.ctx, name, data, "inbox")
	if err != nil {
		if errors.Is(err, papers.ErrInvalidUpload) {
			logger.Warnf("[INBOX] rejected %s: %v", name, err)
			w.move(path, failedDir)
			return
		}
		// left in place, retried on the next write or restart
		logger.Errorf("[INBOX] upload of %s failed: %v", name, err)
		return
	}

	if res.Duplicate {
		logger.Printf("[INBOX] %s duplicates paper %d", name, res.ID)
	} else {
		logger.Printf("[INBOX] %s queued as paper %d", name, res.ID)
	}
	w.move(path, processedDir)
}

func (w *Watcher) move(path, sub string) {
	name := filepath.Base(path)
	target := filepath.Join(w.dir, sub, name)
	if _, err := os.Stat(target); err == nil {
		ext := filepath.Ext(name)
		target = filepath.Join(w.dir, sub,
			fmt.Sprintf("%s_%s%s", strings.TrimSuffix(name, ext), time.Now().UTC().Format("20060102150405"), ext))
	}
	if err := os.Rename(path, target); err != nil {
		logger.Errorf("[INBOX] failed to move %s to %s: %v", path, sub, err)
	}
}
