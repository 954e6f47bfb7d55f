// Package follow tails a JSONL envelope capture while another process appends
// to it. File system events are debounced; each flush emits the complete lines
// written since the previous one.
package follow

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zjrosen/agentpanel/internal/log"
	"github.com/zjrosen/agentpanel/internal/wire"
)

// Config holds follower options.
type Config struct {
	Path        string
	DebounceDur time.Duration
	// FromStart emits the lines already in the file before following it.
	FromStart bool
	// Buffer is the capacity of the line channel.
	Buffer int
}

// DefaultConfig returns defaults for following path.
func DefaultConfig(path string) Config {
	return Config{
		Path:        path,
		DebounceDur: 100 * time.Millisecond,
		FromStart:   true,
		Buffer:      256,
	}
}

// Follower tails one capture file.
type Follower struct {
	fsWatcher *fsnotify.Watcher
	path      string
	debounce  time.Duration
	fromStart bool

	lines chan wire.Line
	done  chan struct{}
	wg    sync.WaitGroup
	stop  sync.Once

	// Read state, owned by the loop goroutine after Start.
	offset  int64
	partial []byte
	lineNo  int
}

// New creates a follower. The file does not need to exist yet.
func New(cfg Config) (*Follower, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("follow: empty path")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	buf := cfg.Buffer
	if buf <= 0 {
		buf = 256
	}
	return &Follower{
		fsWatcher: fsw,
		path:      filepath.Clean(cfg.Path),
		debounce:  cfg.DebounceDur,
		fromStart: cfg.FromStart,
		lines:     make(chan wire.Line, buf),
		done:      make(chan struct{}),
	}, nil
}

// Start watches the capture's directory and returns the line channel. The
// channel is closed by Stop.
func (f *Follower) Start() (<-chan wire.Line, error) {
	dir := filepath.Dir(f.path)
	if err := f.fsWatcher.Add(dir); err != nil {
		return nil, fmt.Errorf("watching directory %s: %w", dir, err)
	}

	if !f.fromStart {
		if info, err := os.Stat(f.path); err == nil {
			f.offset = info.Size()
		}
	}

	f.wg.Add(1)
	go f.loop()
	return f.lines, nil
}

// Stop terminates the follower and closes the line channel.
func (f *Follower) Stop() error {
	var err error
	f.stop.Do(func() {
		close(f.done)
		err = f.fsWatcher.Close()
		f.wg.Wait()
		close(f.lines)
	})
	return err
}

func (f *Follower) loop() {
	defer f.wg.Done()

	if f.fromStart {
		f.readNew()
	}

	var (
		timer   *time.Timer
		pending bool
	)

	for {
		select {
		case event, ok := <-f.fsWatcher.Events:
			if !ok {
				return
			}
			if !f.isRelevantEvent(event) {
				continue
			}

			if timer == nil {
				timer = time.NewTimer(f.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(f.debounce)
			}
			pending = true

		case <-func() <-chan time.Time {
			if timer != nil {
				return timer.C
			}
			return nil
		}():
			if pending {
				f.readNew()
				pending = false
			}

		case err, ok := <-f.fsWatcher.Errors:
			if !ok {
				return
			}
			log.ErrorErr(log.CatWire, "follow watcher error", err, "path", f.path)

		case <-f.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

func (f *Follower) isRelevantEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return false
	}
	return filepath.Clean(event.Name) == f.path
}

// readNew emits every complete line appended since the last read. A file that
// shrank is treated as rotated and read again from the start.
func (f *Follower) readNew() {
	file, err := os.Open(f.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.ErrorErr(log.CatWire, "open capture", err, "path", f.path)
		}
		return
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		log.ErrorErr(log.CatWire, "stat capture", err, "path", f.path)
		return
	}
	if info.Size() < f.offset {
		log.Info(log.CatWire, "capture truncated, restarting", "path", f.path)
		f.offset = 0
		f.partial = nil
		f.lineNo = 0
	}
	if _, err := file.Seek(f.offset, io.SeekStart); err != nil {
		log.ErrorErr(log.CatWire, "seek capture", err, "path", f.path)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		log.ErrorErr(log.CatWire, "read capture", err, "path", f.path)
		return
	}
	f.offset += int64(len(data))

	data = append(f.partial, data...)
	for {
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			break
		}
		f.emit(data[:idx])
		data = data[idx+1:]
	}
	f.partial = append([]byte(nil), data...)
}

func (f *Follower) emit(raw []byte) {
	f.lineNo++
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return
	}
	line := wire.Line{Number: f.lineNo, Raw: append([]byte(nil), raw...)}
	line.Value, line.Err = wire.Decode(raw)

	select {
	case f.lines <- line:
	case <-f.done:
	}
}
