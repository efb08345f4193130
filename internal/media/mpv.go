package media

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// mpvCommandTimeout bounds how long a single IPC command may take
const mpvCommandTimeout = 5 * time.Second

// MPVEngine drives one mpv instance over its JSON-IPC socket. mpv holds a
// single playlist slot, so each channel gets its own engine instance with
// its own socket. Desktop builds start mpv with:
//
//	mpv --idle --no-video --input-ipc-server=<socket>
type MPVEngine struct {
	socketPath string

	mu      sync.Mutex
	conn    net.Conn
	nextID  int64
	pending map[int64]chan mpvResponse
	current *mpvSource
}

// NewMPVEngine creates an engine for the mpv instance listening on socketPath
func NewMPVEngine(socketPath string) *MPVEngine {
	return &MPVEngine{
		socketPath: socketPath,
		pending:    make(map[int64]chan mpvResponse),
	}
}

type mpvRequest struct {
	Command   []interface{} `json:"command"`
	RequestID int64         `json:"request_id"`
}

type mpvResponse struct {
	Error     string `json:"error"`
	RequestID int64  `json:"request_id"`
}

type mpvEvent struct {
	Event  string `json:"event"`
	Reason string `json:"reason"`
}

// Load implements Engine
func (e *MPVEngine) Load(ctx context.Context, locator string, opts LoadOptions) (Source, error) {
	if err := e.connect(); err != nil {
		return nil, err
	}

	if err := e.command(ctx, "loadfile", locator, "replace"); err != nil {
		return nil, fmt.Errorf("loadfile: %w", err)
	}
	loop := "no"
	if opts.Loop {
		loop = "inf"
	}
	if err := e.command(ctx, "set_property", "loop-file", loop); err != nil {
		return nil, fmt.Errorf("set loop: %w", err)
	}
	if err := e.command(ctx, "set_property", "volume", opts.Volume*100); err != nil {
		return nil, fmt.Errorf("set volume: %w", err)
	}
	if err := e.command(ctx, "set_property", "pause", !opts.Autoplay); err != nil {
		return nil, fmt.Errorf("set pause: %w", err)
	}

	src := &mpvSource{engine: e}
	e.mu.Lock()
	e.current = src
	e.mu.Unlock()
	return src, nil
}

// connect dials the IPC socket and starts the read loop once
func (e *MPVEngine) connect() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn != nil {
		return nil
	}
	conn, err := net.Dial("unix", e.socketPath)
	if err != nil {
		return fmt.Errorf("mpv socket %s: %w", e.socketPath, err)
	}
	e.conn = conn
	go e.readLoop(conn)
	return nil
}

// command sends one IPC command and waits for its reply
func (e *MPVEngine) command(ctx context.Context, args ...interface{}) error {
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	ch := make(chan mpvResponse, 1)
	e.pending[id] = ch
	conn := e.conn
	e.mu.Unlock()

	payload, err := json.Marshal(mpvRequest{Command: args, RequestID: id})
	if err != nil {
		return err
	}
	if _, err := conn.Write(append(payload, '\n')); err != nil {
		return fmt.Errorf("mpv write: %w", err)
	}

	select {
	case resp := <-ch:
		if resp.Error != "success" {
			return fmt.Errorf("mpv: %s", resp.Error)
		}
		return nil
	case <-time.After(mpvCommandTimeout):
		return fmt.Errorf("mpv: command timed out")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// readLoop dispatches IPC replies and playback events
func (e *MPVEngine) readLoop(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Bytes()

		var ev mpvEvent
		if err := json.Unmarshal(line, &ev); err == nil && ev.Event != "" {
			// Off the read goroutine: handlers issue IPC commands (seek,
			// stop) whose replies this loop must stay free to read.
			go e.handleEvent(ev)
			continue
		}

		var resp mpvResponse
		if err := json.Unmarshal(line, &resp); err != nil || resp.RequestID == 0 {
			continue
		}
		e.mu.Lock()
		ch, ok := e.pending[resp.RequestID]
		delete(e.pending, resp.RequestID)
		e.mu.Unlock()
		if ok {
			ch <- resp
		}
	}
	log.Debug().Str("socket", e.socketPath).Msg("mpv IPC connection closed")
}

func (e *MPVEngine) handleEvent(ev mpvEvent) {
	if ev.Event != "end-file" {
		return
	}
	e.mu.Lock()
	src := e.current
	e.mu.Unlock()
	if src == nil {
		return
	}
	switch ev.Reason {
	case "eof":
		src.complete()
	case "error":
		src.fail(fmt.Errorf("mpv: end-file reason error"))
	}
}

// detach clears the engine's current source if it is src
func (e *MPVEngine) detach(src *mpvSource) {
	e.mu.Lock()
	if e.current == src {
		e.current = nil
	}
	e.mu.Unlock()
}

// mpvSource is the live resource of an MPVEngine
type mpvSource struct {
	engine *MPVEngine

	mu         sync.Mutex
	onComplete func()
	onError    func(error)
	released   bool
}

func (s *mpvSource) Play() error {
	return s.engine.command(context.Background(), "set_property", "pause", false)
}

func (s *mpvSource) Pause() error {
	return s.engine.command(context.Background(), "set_property", "pause", true)
}

func (s *mpvSource) Rewind() {
	if err := s.engine.command(context.Background(), "seek", 0, "absolute"); err != nil {
		log.Debug().Err(err).Msg("mpv rewind failed")
	}
}

func (s *mpvSource) Release() {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.released = true
	s.mu.Unlock()

	s.engine.detach(s)
	if err := s.engine.command(context.Background(), "stop"); err != nil {
		log.Debug().Err(err).Msg("mpv stop failed")
	}
}

func (s *mpvSource) OnComplete(fn func()) {
	s.mu.Lock()
	s.onComplete = fn
	s.mu.Unlock()
}

func (s *mpvSource) OnError(fn func(error)) {
	s.mu.Lock()
	s.onError = fn
	s.mu.Unlock()
}

func (s *mpvSource) complete() {
	s.mu.Lock()
	fn := s.onComplete
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (s *mpvSource) fail(err error) {
	s.mu.Lock()
	fn := s.onError
	s.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}
