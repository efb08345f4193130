package media

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// PlayState is the playback state of a channel's handle
type PlayState int

const (
	Stopped PlayState = iota
	Playing
	Paused
)

func (s PlayState) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "stopped"
	}
}

// handle is the channel's single live resource
type handle struct {
	locator string
	source  Source
	state   PlayState
}

// Channel owns exactly one active playable-audio resource at a time.
// Starting a new resource releases the prior one before the new one is
// loaded, so two live resources never coexist on one channel. Callbacks
// registered on the channel are invoked without the channel lock held.
type Channel struct {
	name   string
	engine Engine

	mu         sync.Mutex
	handle     *handle
	onComplete func()
	onError    func(error)
}

// NewChannel creates a channel backed by the given engine
func NewChannel(name string, engine Engine) *Channel {
	return &Channel{name: name, engine: engine}
}

// Name returns the channel name used in error reports
func (c *Channel) Name() string { return c.name }

// SetCompletion registers a callback invoked when a non-looping resource
// finishes. The handle is kept: the position is rewound so the resource can
// replay without a reload.
func (c *Channel) SetCompletion(fn func()) {
	c.mu.Lock()
	c.onComplete = fn
	c.mu.Unlock()
}

// SetErrorHandler registers a callback for runtime playback failures
func (c *Channel) SetErrorHandler(fn func(error)) {
	c.mu.Lock()
	c.onError = fn
	c.mu.Unlock()
}

// Start releases any current handle, then loads the new resource. The lock
// is held across the release and the load, which makes Start calls strictly
// sequential per channel. On load failure the channel is left empty.
func (c *Channel) Start(ctx context.Context, locator string, opts LoadOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.releaseLocked()

	source, err := c.engine.Load(ctx, locator, opts)
	if err != nil {
		log.Warn().Err(err).Str("channel", c.name).Str("locator", locator).Msg("Resource load failed")
		return &ResourceLoadError{Channel: c.name, Locator: locator, Err: err}
	}

	h := &handle{locator: locator, source: source, state: Stopped}
	if opts.Autoplay {
		h.state = Playing
	}
	c.handle = h

	source.OnComplete(func() { c.completed(source) })
	source.OnError(func(err error) { c.failed(source, err) })

	log.Debug().
		Str("channel", c.name).
		Str("locator", locator).
		Bool("loop", opts.Loop).
		Float64("volume", opts.Volume).
		Msg("Resource started")
	return nil
}

// Stop halts playback and releases the resource; no-op when nothing is loaded
func (c *Channel) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releaseLocked()
}

// Pause suspends playback; no-op when nothing is loaded
func (c *Channel) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle == nil || c.handle.state != Playing {
		return
	}
	if err := c.handle.source.Pause(); err != nil {
		log.Warn().Err(err).Str("channel", c.name).Msg("Pause failed")
		return
	}
	c.handle.state = Paused
}

// Resume restarts playback; no-op when nothing is loaded
func (c *Channel) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle == nil || c.handle.state == Playing {
		return
	}
	if err := c.handle.source.Play(); err != nil {
		log.Warn().Err(err).Str("channel", c.name).Msg("Resume failed")
		return
	}
	c.handle.state = Playing
}

// State returns the current play state (Stopped when nothing is loaded)
func (c *Channel) State() PlayState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle == nil {
		return Stopped
	}
	return c.handle.state
}

// Locator returns the loaded resource's locator, if any
func (c *Channel) Locator() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle == nil {
		return "", false
	}
	return c.handle.locator, true
}

// releaseLocked releases the current handle. Audio resources hold scarce
// OS-level state, so replacement must release before acquiring.
func (c *Channel) releaseLocked() {
	if c.handle == nil {
		return
	}
	c.handle.source.Release()
	log.Debug().Str("channel", c.name).Str("locator", c.handle.locator).Msg("Resource released")
	c.handle = nil
}

// completed handles natural end of playback for a still-live source
func (c *Channel) completed(source Source) {
	c.mu.Lock()
	if c.handle == nil || c.handle.source != source {
		c.mu.Unlock()
		return
	}
	c.handle.state = Stopped
	source.Rewind()
	fn := c.onComplete
	c.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// failed clears the handle after a runtime playback failure
func (c *Channel) failed(source Source, err error) {
	c.mu.Lock()
	if c.handle == nil || c.handle.source != source {
		c.mu.Unlock()
		return
	}
	c.releaseLocked()
	fn := c.onError
	c.mu.Unlock()

	log.Warn().Err(err).Str("channel", c.name).Msg("Playback failed")
	if fn != nil {
		fn(&PlaybackError{Channel: c.name, Err: err})
	}
}
