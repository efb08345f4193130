package session

import (
	"errors"
	"fmt"
)

var (
	// ErrNotReady rejects user actions while the session is not in Ready
	ErrNotReady = errors.New("session not ready")
	// ErrSuperseded marks an operation whose result was discarded because a
	// newer Enter took over the session
	ErrSuperseded = errors.New("superseded by a newer chapter")
	// ErrBoundary reports a Navigate past the first or last known chapter
	ErrBoundary = errors.New("boundary reached")
	// ErrEntitlementRequired gates translation and mood music behind premium
	ErrEntitlementRequired = errors.New("premium entitlement required")
	// ErrUnknownVoice rejects a voice ID not present in the offerings
	ErrUnknownVoice = errors.New("unknown voice")
	// ErrVoiceUnavailable rejects an offering without audio, owned or not
	ErrVoiceUnavailable = errors.New("voice has no audio")
	// ErrTrackOutOfRange rejects a music track index outside the mood list
	ErrTrackOutOfRange = errors.New("music track index out of range")
)

// PurchaseRequiredError reports an unowned voice offering; the caller is
// expected to purchase it and re-invoke SelectVoice.
type PurchaseRequiredError struct {
	VoiceID string
	Price   int
}

func (e *PurchaseRequiredError) Error() string {
	return fmt.Sprintf("voice %s requires purchase (%d)", e.VoiceID, e.Price)
}
