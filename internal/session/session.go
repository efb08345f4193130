// Package session orchestrates a single chapter view: content loading,
// on-demand translation, and the narration and mood-music channels.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/fableweave/reader/internal/api"
	"github.com/fableweave/reader/internal/media"
	"github.com/fableweave/reader/internal/models"
	"github.com/fableweave/reader/internal/translation"
)

// LanguageOriginal is the sentinel for the chapter's source language
const LanguageOriginal = "original"

// LoadState is the chapter lifecycle state
type LoadState int

const (
	Idle LoadState = iota
	Loading
	Ready
	Locked
	Failed
)

func (s LoadState) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Locked:
		return "locked"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

// Direction selects the navigation neighbor
type Direction int

const (
	Prev Direction = iota
	Next
)

// Fetcher resolves chapters to metadata, body text and voice offerings
type Fetcher interface {
	FetchChapter(ctx context.Context, chapterID string) (*models.Chapter, error)
	ResolveBody(ctx context.Context, locator string) string
	FetchVoiceOfferings(ctx context.Context, chapterID string) []models.VoiceOffering
}

// Translator resolves a chapter translation to final text
type Translator interface {
	Fetch(ctx context.Context, chapterID, lang string) (string, error)
}

// Entitlements checks the viewer's premium subscription
type Entitlements interface {
	HasPremium(ctx context.Context) (bool, error)
}

// NoticeKind classifies informational notices for the presentation layer
type NoticeKind int

const (
	NoticeBoundaryReached NoticeKind = iota
	NoticeTranslationPending
	NoticeNarrationFinished
	NoticePlaybackError
)

// Notice is a non-fatal, user-visible event
type Notice struct {
	Kind      NoticeKind
	ChapterID string
	Message   string
}

// Options tunes a session
type Options struct {
	// Ordering is the story's chapter IDs in ascending chapter-number order
	Ordering []string
	// NarrationVolume for voice playback (default 1.0)
	NarrationVolume float64
	// MoodMusicVolume for looping background tracks (default 0.3)
	MoodMusicVolume float64
}

// Session is the reader session for one chapter at a time. Operations may be
// called from any goroutine; network completions re-enter under the session
// lock and are discarded when a newer Enter has taken over (generation guard).
type Session struct {
	fetcher      Fetcher
	translator   Translator
	entitlements Entitlements
	narration    *media.Channel
	music        *media.Channel
	ordering     []string
	narrVolume   float64
	musicVolume  float64

	mu            sync.Mutex
	gen           uint64
	chapterID     string
	state         LoadState
	chapter       *models.Chapter
	originalText  string
	displayedText string
	activeLang    string
	isTranslating bool
	voices        []models.VoiceOffering
	activeVoiceID string
	activeTrack   int
	listener      func(Notice)
}

// New creates a reader session owning the two media channels
func New(fetcher Fetcher, translator Translator, entitlements Entitlements, narration, music *media.Channel, opts Options) *Session {
	if opts.NarrationVolume == 0 {
		opts.NarrationVolume = 1.0
	}
	if opts.MoodMusicVolume == 0 {
		opts.MoodMusicVolume = 0.3
	}
	s := &Session{
		fetcher:      fetcher,
		translator:   translator,
		entitlements: entitlements,
		narration:    narration,
		music:        music,
		ordering:     opts.Ordering,
		narrVolume:   opts.NarrationVolume,
		musicVolume:  opts.MoodMusicVolume,
		state:        Idle,
		activeLang:   LanguageOriginal,
		activeTrack:  -1,
	}
	narration.SetCompletion(s.narrationFinished)
	narration.SetErrorHandler(s.narrationFailed)
	music.SetErrorHandler(s.musicFailed)
	return s
}

// SetListener registers the notice callback. Notices are delivered outside
// the session lock.
func (s *Session) SetListener(fn func(Notice)) {
	s.mu.Lock()
	s.listener = fn
	s.mu.Unlock()
}

// Enter loads a chapter, tearing down the previous one first. It may be
// called from any state and supersedes any in-flight Enter: when two Enters
// race, only the most recent one's fetch result is applied. Both media
// channels are stopped before the fetch is issued so audio from the old
// chapter never bleeds into the new one.
func (s *Session) Enter(ctx context.Context, chapterID string) error {
	s.mu.Lock()
	s.gen++
	gen := s.gen

	s.narration.Stop()
	s.music.Stop()

	s.chapterID = chapterID
	s.state = Loading
	s.chapter = nil
	s.originalText = ""
	s.displayedText = ""
	s.activeLang = LanguageOriginal
	s.isTranslating = false
	s.voices = nil
	s.activeVoiceID = ""
	s.activeTrack = -1
	s.mu.Unlock()

	log.Info().Str("chapter_id", chapterID).Msg("Entering chapter")

	chapter, err := s.fetcher.FetchChapter(ctx, chapterID)
	if err != nil {
		return s.applyLoadFailure(gen, chapterID, err)
	}
	body := s.fetcher.ResolveBody(ctx, chapter.BodyLocator)
	voices := s.fetcher.FetchVoiceOfferings(ctx, chapterID)

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		log.Debug().Str("chapter_id", chapterID).Msg("Discarding stale chapter fetch")
		return ErrSuperseded
	}
	s.state = Ready
	s.chapter = chapter
	s.originalText = body
	s.displayedText = body
	s.voices = voices
	s.mu.Unlock()

	log.Info().
		Str("chapter_id", chapterID).
		Str("mood", chapter.Mood.Label).
		Int("voices", len(voices)).
		Msg("Chapter ready")
	return nil
}

// applyLoadFailure classifies a chapter fetch failure, generation-guarded
func (s *Session) applyLoadFailure(gen uint64, chapterID string, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		log.Debug().Str("chapter_id", chapterID).Msg("Discarding stale chapter failure")
		return ErrSuperseded
	}
	if errors.Is(err, api.ErrAccessDenied) {
		s.state = Locked
		log.Info().Str("chapter_id", chapterID).Msg("Chapter is paywalled")
	} else {
		s.state = Failed
		log.Warn().Err(err).Str("chapter_id", chapterID).Msg("Chapter load failed")
	}
	return err
}

// Navigate enters the previous or next chapter in the story ordering
func (s *Session) Navigate(ctx context.Context, dir Direction) error {
	s.mu.Lock()
	if s.state != Ready {
		s.mu.Unlock()
		return ErrNotReady
	}
	neighbor, ok := s.neighborLocked(dir)
	current := s.chapterID
	s.mu.Unlock()

	if !ok {
		s.notify(Notice{Kind: NoticeBoundaryReached, ChapterID: current, Message: "no more chapters in this direction"})
		return ErrBoundary
	}
	return s.Enter(ctx, neighbor)
}

func (s *Session) neighborLocked(dir Direction) (string, bool) {
	for i, id := range s.ordering {
		if id != s.chapterID {
			continue
		}
		if dir == Next && i+1 < len(s.ordering) {
			return s.ordering[i+1], true
		}
		if dir == Prev && i > 0 {
			return s.ordering[i-1], true
		}
		return "", false
	}
	return "", false
}

// RequestTranslation switches the displayed text to lang. "original" is
// synchronous and offline; other languages require premium entitlement and
// delegate to the translation coordinator. The load state never changes:
// a pending or failed translation leaves the previous text showing.
func (s *Session) RequestTranslation(ctx context.Context, lang string) error {
	s.mu.Lock()
	if s.state != Ready {
		s.mu.Unlock()
		return ErrNotReady
	}
	if lang == LanguageOriginal {
		s.displayedText = s.originalText
		s.activeLang = LanguageOriginal
		s.mu.Unlock()
		return nil
	}
	gen := s.gen
	chapterID := s.chapterID
	s.mu.Unlock()

	premium, err := s.entitlements.HasPremium(ctx)
	if err != nil || !premium {
		if err != nil {
			log.Warn().Err(err).Msg("Entitlement check failed")
		}
		return ErrEntitlementRequired
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return ErrSuperseded
	}
	s.isTranslating = true
	s.mu.Unlock()

	text, err := s.translator.Fetch(ctx, chapterID, lang)

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return ErrSuperseded
	}
	s.isTranslating = false
	if err != nil {
		s.mu.Unlock()
		if errors.Is(err, translation.ErrPending) {
			s.notify(Notice{Kind: NoticeTranslationPending, ChapterID: chapterID, Message: "translation pending, retry shortly"})
		}
		return err
	}
	s.displayedText = text
	s.activeLang = lang
	s.mu.Unlock()

	log.Info().Str("chapter_id", chapterID).Str("lang", lang).Msg("Translation displayed")
	return nil
}

// SelectVoice starts, toggles, or gates narration for a voice offering.
// An unowned offering never reaches the narration channel: the caller gets
// PurchaseRequiredError and is expected to buy the voice and re-invoke.
func (s *Session) SelectVoice(ctx context.Context, voiceID string) error {
	s.mu.Lock()
	if s.state != Ready {
		s.mu.Unlock()
		return ErrNotReady
	}
	offering, ok := s.findVoiceLocked(voiceID)
	if !ok {
		s.mu.Unlock()
		return ErrUnknownVoice
	}
	if !offering.HasAudio {
		s.mu.Unlock()
		return ErrVoiceUnavailable
	}
	if !offering.Owned {
		s.mu.Unlock()
		return &PurchaseRequiredError{VoiceID: voiceID, Price: offering.Price}
	}
	if offering.AudioLocator == nil {
		s.mu.Unlock()
		return ErrVoiceUnavailable
	}

	if _, loaded := s.narration.Locator(); loaded && s.activeVoiceID == voiceID {
		if s.narration.State() == media.Playing {
			s.narration.Pause()
		} else {
			s.narration.Resume()
		}
		s.mu.Unlock()
		return nil
	}

	locator := *offering.AudioLocator
	if err := s.narration.Start(ctx, locator, media.LoadOptions{Volume: s.narrVolume, Autoplay: true}); err != nil {
		s.activeVoiceID = ""
		s.mu.Unlock()
		return err
	}
	s.activeVoiceID = voiceID
	s.mu.Unlock()

	log.Info().Str("voice_id", voiceID).Msg("Narration started")
	return nil
}

func (s *Session) findVoiceLocked(voiceID string) (models.VoiceOffering, bool) {
	for _, v := range s.voices {
		if v.VoiceID == voiceID {
			return v, true
		}
	}
	return models.VoiceOffering{}, false
}

// SelectMusicTrack starts the mood track at index, or stops it when it is
// already active (toggle off). Mood music requires premium entitlement,
// loops, and plays at reduced volume. It is independent of narration.
func (s *Session) SelectMusicTrack(ctx context.Context, index int) error {
	s.mu.Lock()
	if s.state != Ready {
		s.mu.Unlock()
		return ErrNotReady
	}
	if s.chapter == nil || index < 0 || index >= len(s.chapter.Mood.Tracks) {
		s.mu.Unlock()
		return ErrTrackOutOfRange
	}
	gen := s.gen
	s.mu.Unlock()

	premium, err := s.entitlements.HasPremium(ctx)
	if err != nil || !premium {
		if err != nil {
			log.Warn().Err(err).Msg("Entitlement check failed")
		}
		return ErrEntitlementRequired
	}

	s.mu.Lock()
	if s.gen != gen || s.state != Ready {
		s.mu.Unlock()
		return ErrSuperseded
	}
	if s.activeTrack == index {
		s.music.Stop()
		s.activeTrack = -1
		s.mu.Unlock()
		return nil
	}
	locator := s.chapter.Mood.Tracks[index]
	if err := s.music.Start(ctx, locator, media.LoadOptions{Loop: true, Volume: s.musicVolume, Autoplay: true}); err != nil {
		s.activeTrack = -1
		s.mu.Unlock()
		return err
	}
	s.activeTrack = index
	s.mu.Unlock()

	log.Info().Int("track", index).Msg("Mood music started")
	return nil
}

// RefreshVoices re-fetches the voice offerings, e.g. after a purchase made
// through the payments flow, without reloading the chapter.
func (s *Session) RefreshVoices(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Ready {
		s.mu.Unlock()
		return ErrNotReady
	}
	gen := s.gen
	chapterID := s.chapterID
	s.mu.Unlock()

	voices := s.fetcher.FetchVoiceOfferings(ctx, chapterID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return ErrSuperseded
	}
	s.voices = voices
	return nil
}

// Close releases both media channels
func (s *Session) Close() {
	s.narration.Stop()
	s.music.Stop()
}

// narrationFinished resets narration to paused-at-start when a voice track
// ends; the session does not auto-advance to another voice or chapter.
func (s *Session) narrationFinished() {
	s.mu.Lock()
	chapterID := s.chapterID
	s.mu.Unlock()
	s.notify(Notice{Kind: NoticeNarrationFinished, ChapterID: chapterID, Message: "narration finished"})
}

func (s *Session) narrationFailed(err error) {
	s.mu.Lock()
	s.activeVoiceID = ""
	chapterID := s.chapterID
	s.mu.Unlock()
	s.notify(Notice{Kind: NoticePlaybackError, ChapterID: chapterID, Message: err.Error()})
}

func (s *Session) musicFailed(err error) {
	s.mu.Lock()
	s.activeTrack = -1
	chapterID := s.chapterID
	s.mu.Unlock()
	s.notify(Notice{Kind: NoticePlaybackError, ChapterID: chapterID, Message: err.Error()})
}

func (s *Session) notify(n Notice) {
	s.mu.Lock()
	fn := s.listener
	s.mu.Unlock()
	if fn != nil {
		fn(n)
	}
}

// Snapshot is the immutable view a presentation layer renders
type Snapshot struct {
	ChapterID      string
	State          LoadState
	Title          string
	MoodLabel      string
	DisplayedText  string
	ActiveLanguage string
	IsTranslating  bool
	Voices         []models.VoiceOffering
	MusicTracks    []string
	ActiveVoiceID  string
	ActiveTrack    int
	NarrationState media.PlayState
	MusicState     media.PlayState
}

// Snapshot returns the current session state for rendering
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ChapterID:      s.chapterID,
		State:          s.state,
		DisplayedText:  s.displayedText,
		ActiveLanguage: s.activeLang,
		IsTranslating:  s.isTranslating,
		Voices:         append([]models.VoiceOffering(nil), s.voices...),
		ActiveVoiceID:  s.activeVoiceID,
		ActiveTrack:    s.activeTrack,
		NarrationState: s.narration.State(),
		MusicState:     s.music.State(),
	}
	if s.chapter != nil {
		snap.Title = s.chapter.Title
		snap.MoodLabel = s.chapter.Mood.Label
		snap.MusicTracks = append([]string(nil), s.chapter.Mood.Tracks...)
	}
	return snap
}
