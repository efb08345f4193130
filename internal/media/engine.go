// Package media wraps playable audio resources behind channels that
// guarantee at most one live resource each.
package media

import (
	"context"
	"fmt"
)

// LoadOptions controls how a resource is loaded and started
type LoadOptions struct {
	Loop     bool
	Volume   float64 // 0.0 - 1.0
	Autoplay bool
}

// Engine is the playback backend port. Load returns a Source once the
// resource is loaded and, if requested, playing.
type Engine interface {
	Load(ctx context.Context, locator string, opts LoadOptions) (Source, error)
}

// Source is a loaded audio resource. Implementations must invoke the
// completion and error callbacks from outside any lock the caller could be
// holding a channel method on.
type Source interface {
	Play() error
	Pause() error
	// Rewind resets the playback position to the start without unloading
	Rewind()
	// Release stops playback and frees the underlying resource
	Release()
	// OnComplete registers a callback for natural (non-looping) end of playback
	OnComplete(func())
	// OnError registers a callback for runtime playback failures
	OnError(func(error))
}

// ResourceLoadError reports a resource that failed to load on a channel
type ResourceLoadError struct {
	Channel string
	Locator string
	Err     error
}

func (e *ResourceLoadError) Error() string {
	return fmt.Sprintf("channel %s: failed to load %s: %v", e.Channel, e.Locator, e.Err)
}

func (e *ResourceLoadError) Unwrap() error { return e.Err }

// PlaybackError reports a runtime audio failure on a channel
type PlaybackError struct {
	Channel string
	Err     error
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("channel %s: playback failed: %v", e.Channel, e.Err)
}

func (e *PlaybackError) Unwrap() error { return e.Err }
