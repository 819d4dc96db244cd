package build

import (
	"context"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/rljarm/AIServer/internal/model"
)

// CodeFixer is the slice of the model collaborator the repair step needs.
type CodeFixer interface {
	RepairCode(ctx context.Context, projectName string) (bool, error)
}

// FixHandler delegates repairs to the model collaborator and observes the
// project tree while the repair runs. The collaborator's success claim is
// taken at face value, but the list of files actually written during the
// repair window is recorded alongside it, so a claimed fix that touched
// nothing is visible in the attempt history.
type FixHandler struct {
	fixer       CodeFixer
	projectName string
	projectDir  string
	logger      *log.Logger
	logLevel    LogLevel
}

func NewFixHandler(fixer CodeFixer, projectName, projectDir string, logger *log.Logger, logLevel LogLevel) *FixHandler {
	return &FixHandler{
		fixer:       fixer,
		projectName: projectName,
		projectDir:  projectDir,
		logger:      logger,
		logLevel:    logLevel,
	}
}

// AttemptFix runs one repair. A collaborator failure (error return,
// timeout) is downgraded to "no fix applied"; the retry loop treats a
// failed repair as a normal outcome, not a reason to abort.
func (h *FixHandler) AttemptFix(ctx context.Context) model.FixReport {
	observing, stop := h.watchChanges()

	applied, err := h.fixer.RepairCode(ctx, h.projectName)
	changed := stop()

	if err != nil {
		h.log(LogLevelWarn, "repair_call_failed project=%s error=%v", h.projectName, err)
		return model.FixReport{Applied: false, FilesChanged: changed, Error: err.Error()}
	}

	if applied && observing && len(changed) == 0 {
		h.log(LogLevelWarn, "repair_claimed_without_changes project=%s", h.projectName)
	}

	return model.FixReport{Applied: applied, FilesChanged: changed}
}

// watchChanges starts an fsnotify watcher over the project tree. It
// returns whether observation is active and a stop function yielding the
// relative paths written while the watcher ran. Watcher setup failure
// degrades to no observation; it never fails the repair.
func (h *FixHandler) watchChanges() (bool, func() []string) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		h.log(LogLevelDebug, "repair_watcher_unavailable error=%v", err)
		return false, func() []string { return nil }
	}

	_ = filepath.WalkDir(h.projectDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			_ = watcher.Add(path)
		}
		return nil
	})

	var mu sync.Mutex
	changed := make(map[string]bool)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					// New directory: watch it so nested writes are seen.
					_ = watcher.Add(ev.Name)
					continue
				}
				rel, err := filepath.Rel(h.projectDir, ev.Name)
				if err != nil {
					rel = ev.Name
				}
				mu.Lock()
				changed[rel] = true
				mu.Unlock()
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	stop := func() []string {
		_ = watcher.Close()
		<-done

		mu.Lock()
		defer mu.Unlock()
		files := make([]string, 0, len(changed))
		for f := range changed {
			files = append(files, f)
		}
		sort.Strings(files)
		return files
	}
	return true, stop
}

func (h *FixHandler) log(level LogLevel, format string, args ...interface{}) {
	if h.logger == nil || level < h.logLevel {
		return
	}
	h.logger.Printf(levelPrefix(level)+format, args...)
}
