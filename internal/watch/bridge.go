package watch

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ai-band/orchestrator/internal/hub"
)

// Broadcaster is the slice of the hub the bridge needs: fan one event out to
// every active session.
type Broadcaster interface {
	Broadcast(ev hub.Event) int
}

// ErrAlreadyRunning is returned by Start when the bridge is watching a
// directory; Stop first to move it.
var ErrAlreadyRunning = errors.New("watch: bridge already running")

// artifact is one observed file creation, queued for broadcast.
type artifact struct {
	name    string
	created time.Time
}

// Bridge watches a directory tree for newly created artifact files and turns
// each creation into a files_ready broadcast. One goroutine drains fsnotify,
// a second consumes the bounded inbox and runs the broadcasts, so a slow
// delivery never backs up into the watcher.
type Bridge struct {
	ext         string
	broadcaster Broadcaster

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	wg      sync.WaitGroup
}

func New(ext string, broadcaster Broadcaster) *Bridge {
	return &Bridge{ext: ext, broadcaster: broadcaster}
}

// Start begins watching dir recursively. Setup failure (missing path,
// exhausted watch descriptors) leaves the bridge inert; calling Start again
// later retries from scratch. Starting an already-running bridge is an
// error; use Stop first to re-point it at a new directory.
func (b *Bridge) Start(dir string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.watcher != nil {
		return ErrAlreadyRunning
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	if err := addRecursive(w, dir); err != nil {
		w.Close()
		return err
	}

	inbox := make(chan artifact, 256)
	b.watcher = w

	b.wg.Add(2)
	go b.watchLoop(w, inbox)
	go b.broadcastLoop(inbox)

	log.Printf("watching %s for new %s files", dir, b.ext)
	return nil
}

// Stop fully releases the current watch and waits for both loops to exit.
// Safe to call when the bridge is not running.
func (b *Bridge) Stop() {
	b.mu.Lock()
	w := b.watcher
	b.watcher = nil
	b.mu.Unlock()

	if w == nil {
		return
	}
	w.Close()
	b.wg.Wait()
	log.Println("file watch stopped")
}

// Running reports whether the bridge currently holds a watch.
func (b *Bridge) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.watcher != nil
}

// watchLoop drains fsnotify events until the watcher closes, queueing
// qualifying creations into the inbox. It owns closing the inbox.
func (b *Bridge) watchLoop(w *fsnotify.Watcher, inbox chan<- artifact) {
	defer b.wg.Done()
	defer close(inbox)

	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) {
				continue
			}
			if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
				// New subdirectory: extend the recursive watch.
				if err := w.Add(ev.Name); err != nil {
					log.Printf("watch: cannot add %s: %v", ev.Name, err)
				}
				continue
			}
			if !strings.EqualFold(filepath.Ext(ev.Name), b.ext) {
				continue
			}
			a := artifact{name: filepath.Base(ev.Name), created: time.Now()}
			if info, err := os.Stat(ev.Name); err == nil {
				a.created = info.ModTime()
			}
			select {
			case inbox <- a:
			default:
				log.Printf("watch: inbox full, dropping event for %s", a.name)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.Printf("watch error: %v", err)
		}
	}
}

// broadcastLoop consumes queued artifacts and fans each one out.
func (b *Bridge) broadcastLoop(inbox <-chan artifact) {
	defer b.wg.Done()
	for a := range inbox {
		n := b.broadcaster.Broadcast(hub.FileReadyEvent(a.name, a.created))
		log.Printf("new artifact %s announced to %d sessions", a.name, n)
	}
}

func addRecursive(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
