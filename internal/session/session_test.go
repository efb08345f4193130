package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fableweave/reader/internal/api"
	"github.com/fableweave/reader/internal/media"
	"github.com/fableweave/reader/internal/models"
	"github.com/fableweave/reader/internal/translation"
)

// recorder collects operation order across stubs so tests can assert
// cross-component sequencing (e.g. teardown before fetch)
type recorder struct {
	mu  sync.Mutex
	ops []string
}

func (r *recorder) add(op string) {
	r.mu.Lock()
	r.ops = append(r.ops, op)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ops...)
}

func (r *recorder) index(op string) int {
	for i, o := range r.snapshot() {
		if o == op {
			return i
		}
	}
	return -1
}

type stubFetcher struct {
	rec      *recorder
	chapters map[string]*models.Chapter
	bodies   map[string]string
	voices   map[string][]models.VoiceOffering
	errs     map[string]error
	gates    map[string]chan struct{} // fetch blocks until the gate closes
}

func (f *stubFetcher) FetchChapter(_ context.Context, chapterID string) (*models.Chapter, error) {
	f.rec.add("fetch:" + chapterID)
	if gate := f.gates[chapterID]; gate != nil {
		<-gate
	}
	if err := f.errs[chapterID]; err != nil {
		return nil, err
	}
	chapter, ok := f.chapters[chapterID]
	if !ok {
		return nil, api.ErrNotFound
	}
	return chapter, nil
}

func (f *stubFetcher) ResolveBody(_ context.Context, locator string) string {
	if body, ok := f.bodies[locator]; ok {
		return body
	}
	return "content unavailable"
}

func (f *stubFetcher) FetchVoiceOfferings(_ context.Context, chapterID string) []models.VoiceOffering {
	return append([]models.VoiceOffering(nil), f.voices[chapterID]...)
}

type stubTranslator struct {
	rec   *recorder
	texts map[string]string // "chapterID/lang" -> text
	err   error
	gate  chan struct{}
}

func (tr *stubTranslator) Fetch(_ context.Context, chapterID, lang string) (string, error) {
	tr.rec.add("translate:" + chapterID + "/" + lang)
	if tr.gate != nil {
		<-tr.gate
	}
	if tr.err != nil {
		return "", tr.err
	}
	text, ok := tr.texts[chapterID+"/"+lang]
	if !ok {
		return "", translation.ErrPending
	}
	return text, nil
}

type stubEntitlements struct {
	premium bool
	err     error
	calls   int
}

func (e *stubEntitlements) HasPremium(context.Context) (bool, error) {
	e.calls++
	return e.premium, e.err
}

// fakeEngine implements media.Engine, recording loads and releases
type fakeEngine struct {
	rec      *recorder
	name     string
	failLoad map[string]error

	mu      sync.Mutex
	sources []*fakeSource
}

func (e *fakeEngine) Load(_ context.Context, locator string, opts media.LoadOptions) (media.Source, error) {
	if err := e.failLoad[locator]; err != nil {
		return nil, err
	}
	e.rec.add("load:" + e.name + ":" + locator)
	src := &fakeSource{engine: e, locator: locator, opts: opts}
	e.mu.Lock()
	e.sources = append(e.sources, src)
	e.mu.Unlock()
	return src, nil
}

func (e *fakeEngine) loadCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sources)
}

func (e *fakeEngine) last() *fakeSource {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.sources) == 0 {
		return nil
	}
	return e.sources[len(e.sources)-1]
}

type fakeSource struct {
	engine   *fakeEngine
	locator  string
	opts     media.LoadOptions
	released bool

	onComplete func()
	onError    func(error)
}

func (s *fakeSource) Play() error  { return nil }
func (s *fakeSource) Pause() error { return nil }
func (s *fakeSource) Rewind()      {}
func (s *fakeSource) Release() {
	s.released = true
	s.engine.rec.add("release:" + s.engine.name + ":" + s.locator)
}
func (s *fakeSource) OnComplete(fn func())   { s.onComplete = fn }
func (s *fakeSource) OnError(fn func(error)) { s.onError = fn }

type fixture struct {
	rec        *recorder
	fetcher    *stubFetcher
	translator *stubTranslator
	ent        *stubEntitlements
	narrEngine *fakeEngine
	musEngine  *fakeEngine
	sess       *Session

	mu      sync.Mutex
	notices []Notice
}

func strPtr(s string) *string { return &s }

// newFixture builds a three-chapter story. Chapter voices: v1 purchasable
// (price 50), v2 owned with audio, v3 without audio.
func newFixture() *fixture {
	rec := &recorder{}

	chapters := make(map[string]*models.Chapter)
	bodies := make(map[string]string)
	voices := make(map[string][]models.VoiceOffering)
	texts := []string{"Hello", "Second chapter", "Third chapter"}
	for i := 1; i <= 3; i++ {
		id := fmt.Sprintf("c%d", i)
		locator := fmt.Sprintf("bodies/%s.txt", id)
		chapters[id] = &models.Chapter{
			ID:          id,
			StoryID:     "story",
			Number:      i,
			Title:       fmt.Sprintf("Chapter %d", i),
			BodyLocator: locator,
			Mood: models.MoodInfo{
				Label:  "calm",
				Tracks: []string{"music/calm-a.ogg", "music/calm-b.ogg"},
			},
		}
		bodies[locator] = texts[i-1]
		voices[id] = []models.VoiceOffering{
			{VoiceID: "v1", DisplayName: "Aria", HasAudio: true, Owned: false, Price: 50},
			{VoiceID: "v2", DisplayName: "Brook", HasAudio: true, Owned: true, AudioLocator: strPtr("voices/" + id + "-v2.ogg")},
			{VoiceID: "v3", DisplayName: "Cael", HasAudio: false},
		}
	}

	f := &fixture{
		rec:        rec,
		fetcher:    &stubFetcher{rec: rec, chapters: chapters, bodies: bodies, voices: voices, errs: map[string]error{}, gates: map[string]chan struct{}{}},
		translator: &stubTranslator{rec: rec, texts: map[string]string{}},
		ent:        &stubEntitlements{premium: true},
		narrEngine: &fakeEngine{rec: rec, name: "narration", failLoad: map[string]error{}},
		musEngine:  &fakeEngine{rec: rec, name: "music", failLoad: map[string]error{}},
	}
	narration := media.NewChannel("narration", f.narrEngine)
	music := media.NewChannel("mood-music", f.musEngine)
	f.sess = New(f.fetcher, f.translator, f.ent, narration, music, Options{
		Ordering: []string{"c1", "c2", "c3"},
	})
	f.sess.SetListener(func(n Notice) {
		f.mu.Lock()
		f.notices = append(f.notices, n)
		f.mu.Unlock()
	})
	return f
}

func (f *fixture) noticeKinds() []NoticeKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	kinds := make([]NoticeKind, len(f.notices))
	for i, n := range f.notices {
		kinds[i] = n.Kind
	}
	return kinds
}

func (f *fixture) hasNotice(kind NoticeKind) bool {
	for _, k := range f.noticeKinds() {
		if k == kind {
			return true
		}
	}
	return false
}

func TestEnter_Success(t *testing.T) {
	f := newFixture()
	if err := f.sess.Enter(context.Background(), "c1"); err != nil {
		t.Fatalf("Enter: %v", err)
	}
	snap := f.sess.Snapshot()
	if snap.State != Ready {
		t.Fatalf("state = %v, want Ready", snap.State)
	}
	if snap.ChapterID != "c1" || snap.Title != "Chapter 1" {
		t.Errorf("chapter = %s (%s)", snap.ChapterID, snap.Title)
	}
	if snap.DisplayedText != "Hello" {
		t.Errorf("displayedText = %q", snap.DisplayedText)
	}
	if snap.ActiveLanguage != LanguageOriginal {
		t.Errorf("activeLanguage = %q", snap.ActiveLanguage)
	}
	if len(snap.Voices) != 3 {
		t.Errorf("voices = %d, want 3", len(snap.Voices))
	}
	if len(snap.MusicTracks) != 2 {
		t.Errorf("music tracks = %d, want 2", len(snap.MusicTracks))
	}
}

func TestEnter_PaywallEntersLocked(t *testing.T) {
	f := newFixture()
	f.fetcher.errs["c1"] = fmt.Errorf("chapter c1: %w", api.ErrAccessDenied)

	err := f.sess.Enter(context.Background(), "c1")
	if !errors.Is(err, api.ErrAccessDenied) {
		t.Fatalf("expected access denied, got %v", err)
	}
	if snap := f.sess.Snapshot(); snap.State != Locked {
		t.Errorf("state = %v, want Locked", snap.State)
	}
}

func TestEnter_TransportFailureEntersFailed(t *testing.T) {
	f := newFixture()
	f.fetcher.errs["c1"] = errors.New("connection reset")

	if err := f.sess.Enter(context.Background(), "c1"); err == nil {
		t.Fatal("expected error")
	}
	if snap := f.sess.Snapshot(); snap.State != Failed {
		t.Errorf("state = %v, want Failed", snap.State)
	}
}

// TestEnter_StaleResponseDiscarded issues Enter(c1), then Enter(c2) while
// c1's fetch is still in flight; c1's late result must be discarded.
func TestEnter_StaleResponseDiscarded(t *testing.T) {
	f := newFixture()
	gate := make(chan struct{})
	f.fetcher.gates["c1"] = gate

	done := make(chan error, 1)
	go func() { done <- f.sess.Enter(context.Background(), "c1") }()

	// wait for c1's fetch to be issued
	deadline := time.After(2 * time.Second)
	for f.rec.index("fetch:c1") < 0 {
		select {
		case <-deadline:
			t.Fatal("fetch:c1 never issued")
		case <-time.After(time.Millisecond):
		}
	}

	if err := f.sess.Enter(context.Background(), "c2"); err != nil {
		t.Fatalf("Enter c2: %v", err)
	}
	close(gate)

	if err := <-done; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("superseded Enter returned %v, want ErrSuperseded", err)
	}

	snap := f.sess.Snapshot()
	if snap.ChapterID != "c2" || snap.DisplayedText != "Second chapter" {
		t.Errorf("live session reflects %s (%q), want c2", snap.ChapterID, snap.DisplayedText)
	}
	if snap.State != Ready {
		t.Errorf("state = %v, want Ready", snap.State)
	}
}

// TestEnter_TeardownBeforeFetch verifies both channels are released before
// the next chapter's fetch is issued.
func TestEnter_TeardownBeforeFetch(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if err := f.sess.Enter(ctx, "c1"); err != nil {
		t.Fatalf("Enter c1: %v", err)
	}
	if err := f.sess.SelectVoice(ctx, "v2"); err != nil {
		t.Fatalf("SelectVoice: %v", err)
	}
	if err := f.sess.SelectMusicTrack(ctx, 0); err != nil {
		t.Fatalf("SelectMusicTrack: %v", err)
	}

	if err := f.sess.Enter(ctx, "c2"); err != nil {
		t.Fatalf("Enter c2: %v", err)
	}

	fetchIdx := f.rec.index("fetch:c2")
	narrIdx := f.rec.index("release:narration:voices/c1-v2.ogg")
	musIdx := f.rec.index("release:music:music/calm-a.ogg")
	if fetchIdx < 0 || narrIdx < 0 || musIdx < 0 {
		t.Fatalf("missing ops in %v", f.rec.snapshot())
	}
	if narrIdx > fetchIdx || musIdx > fetchIdx {
		t.Errorf("teardown must precede fetch: %v", f.rec.snapshot())
	}
}

func TestNavigate_Next(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if err := f.sess.Enter(ctx, "c1"); err != nil {
		t.Fatalf("Enter: %v", err)
	}
	if err := f.sess.Navigate(ctx, Next); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	if snap := f.sess.Snapshot(); snap.ChapterID != "c2" {
		t.Errorf("chapter = %s, want c2", snap.ChapterID)
	}
}

func TestNavigate_BoundaryReached(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if err := f.sess.Enter(ctx, "c3"); err != nil {
		t.Fatalf("Enter: %v", err)
	}

	err := f.sess.Navigate(ctx, Next)
	if !errors.Is(err, ErrBoundary) {
		t.Fatalf("expected ErrBoundary, got %v", err)
	}
	snap := f.sess.Snapshot()
	if snap.State != Ready || snap.ChapterID != "c3" {
		t.Errorf("session changed: state=%v chapter=%s", snap.State, snap.ChapterID)
	}
	if !f.hasNotice(NoticeBoundaryReached) {
		t.Error("boundary notice not emitted")
	}
}

func TestNavigate_RequiresReady(t *testing.T) {
	f := newFixture()
	if err := f.sess.Navigate(context.Background(), Next); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
}

// TestRequestTranslation_OriginalIsOffline checks that switching back to the
// original text is synchronous and never touches the network.
func TestRequestTranslation_OriginalIsOffline(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.translator.texts["c1/fr-FR"] = "Bonjour"
	if err := f.sess.Enter(ctx, "c1"); err != nil {
		t.Fatalf("Enter: %v", err)
	}
	if err := f.sess.RequestTranslation(ctx, "fr-FR"); err != nil {
		t.Fatalf("translate: %v", err)
	}

	entCalls := f.ent.calls
	if err := f.sess.RequestTranslation(ctx, LanguageOriginal); err != nil {
		t.Fatalf("translate original: %v", err)
	}

	snap := f.sess.Snapshot()
	if snap.DisplayedText != "Hello" || snap.ActiveLanguage != LanguageOriginal {
		t.Errorf("text=%q lang=%q", snap.DisplayedText, snap.ActiveLanguage)
	}
	if f.ent.calls != entCalls {
		t.Error("original request hit the entitlement check")
	}
	for _, op := range f.rec.snapshot() {
		if strings.HasPrefix(op, "translate:") && strings.HasSuffix(op, "/original") {
			t.Errorf("original request reached the coordinator: %s", op)
		}
	}
}

func TestRequestTranslation_EntitlementRequired(t *testing.T) {
	f := newFixture()
	f.ent.premium = false
	ctx := context.Background()
	if err := f.sess.Enter(ctx, "c1"); err != nil {
		t.Fatalf("Enter: %v", err)
	}

	err := f.sess.RequestTranslation(ctx, "en-US")
	if !errors.Is(err, ErrEntitlementRequired) {
		t.Fatalf("expected ErrEntitlementRequired, got %v", err)
	}
	snap := f.sess.Snapshot()
	if snap.DisplayedText != "Hello" || snap.ActiveLanguage != LanguageOriginal {
		t.Errorf("session changed: text=%q lang=%q", snap.DisplayedText, snap.ActiveLanguage)
	}
}

func TestRequestTranslation_Success(t *testing.T) {
	f := newFixture()
	f.translator.texts["c1/fr-FR"] = "Bonjour"
	ctx := context.Background()
	if err := f.sess.Enter(ctx, "c1"); err != nil {
		t.Fatalf("Enter: %v", err)
	}
	if err := f.sess.RequestTranslation(ctx, "fr-FR"); err != nil {
		t.Fatalf("translate: %v", err)
	}
	snap := f.sess.Snapshot()
	if snap.DisplayedText != "Bonjour" || snap.ActiveLanguage != "fr-FR" {
		t.Errorf("text=%q lang=%q", snap.DisplayedText, snap.ActiveLanguage)
	}
	if snap.IsTranslating {
		t.Error("isTranslating still set after completion")
	}
	if snap.State != Ready {
		t.Errorf("loadState changed to %v", snap.State)
	}
}

func TestRequestTranslation_PendingLeavesTextUnchanged(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if err := f.sess.Enter(ctx, "c1"); err != nil {
		t.Fatalf("Enter: %v", err)
	}

	err := f.sess.RequestTranslation(ctx, "de-DE")
	if !errors.Is(err, translation.ErrPending) {
		t.Fatalf("expected ErrPending, got %v", err)
	}
	snap := f.sess.Snapshot()
	if snap.DisplayedText != "Hello" || snap.ActiveLanguage != LanguageOriginal {
		t.Errorf("session changed: text=%q lang=%q", snap.DisplayedText, snap.ActiveLanguage)
	}
	if !f.hasNotice(NoticeTranslationPending) {
		t.Error("pending notice not emitted")
	}
}

// TestRequestTranslation_SupersededByEnter checks that a translation
// resolving after a chapter change cannot leak into the new chapter.
func TestRequestTranslation_SupersededByEnter(t *testing.T) {
	f := newFixture()
	f.translator.texts["c1/fr-FR"] = "Bonjour"
	f.translator.gate = make(chan struct{})
	ctx := context.Background()
	if err := f.sess.Enter(ctx, "c1"); err != nil {
		t.Fatalf("Enter: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- f.sess.RequestTranslation(ctx, "fr-FR") }()

	deadline := time.After(2 * time.Second)
	for f.rec.index("translate:c1/fr-FR") < 0 {
		select {
		case <-deadline:
			t.Fatal("translation never issued")
		case <-time.After(time.Millisecond):
		}
	}

	if err := f.sess.Enter(ctx, "c2"); err != nil {
		t.Fatalf("Enter c2: %v", err)
	}
	close(f.translator.gate)

	if err := <-done; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded, got %v", err)
	}
	snap := f.sess.Snapshot()
	if snap.DisplayedText != "Second chapter" || snap.ActiveLanguage != LanguageOriginal {
		t.Errorf("stale translation leaked: text=%q lang=%q", snap.DisplayedText, snap.ActiveLanguage)
	}
}

func TestSelectVoice_PurchaseRequired(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if err := f.sess.Enter(ctx, "c1"); err != nil {
		t.Fatalf("Enter: %v", err)
	}

	err := f.sess.SelectVoice(ctx, "v1")
	var purchase *PurchaseRequiredError
	if !errors.As(err, &purchase) {
		t.Fatalf("expected PurchaseRequiredError, got %v", err)
	}
	if purchase.VoiceID != "v1" || purchase.Price != 50 {
		t.Errorf("purchase = %+v", purchase)
	}
	if f.narrEngine.loadCount() != 0 {
		t.Error("unowned voice reached the narration channel")
	}
	if snap := f.sess.Snapshot(); snap.NarrationState != media.Stopped {
		t.Errorf("narration state = %v", snap.NarrationState)
	}
}

func TestSelectVoice_StartsOwnedVoice(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if err := f.sess.Enter(ctx, "c1"); err != nil {
		t.Fatalf("Enter: %v", err)
	}
	if err := f.sess.SelectVoice(ctx, "v2"); err != nil {
		t.Fatalf("SelectVoice: %v", err)
	}

	snap := f.sess.Snapshot()
	if snap.ActiveVoiceID != "v2" || snap.NarrationState != media.Playing {
		t.Errorf("active=%s state=%v", snap.ActiveVoiceID, snap.NarrationState)
	}
	src := f.narrEngine.last()
	if src.locator != "voices/c1-v2.ogg" {
		t.Errorf("locator = %s", src.locator)
	}
	if src.opts.Loop {
		t.Error("narration must not loop")
	}
}

func TestSelectVoice_ActiveVoiceToggles(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if err := f.sess.Enter(ctx, "c1"); err != nil {
		t.Fatalf("Enter: %v", err)
	}
	for i, want := range []media.PlayState{media.Playing, media.Paused, media.Playing} {
		if err := f.sess.SelectVoice(ctx, "v2"); err != nil {
			t.Fatalf("SelectVoice #%d: %v", i+1, err)
		}
		if got := f.sess.Snapshot().NarrationState; got != want {
			t.Fatalf("after select #%d: state = %v, want %v", i+1, got, want)
		}
	}
	if f.narrEngine.loadCount() != 1 {
		t.Errorf("toggling reloaded the resource: %d loads", f.narrEngine.loadCount())
	}
}

func TestSelectVoice_Rejections(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if err := f.sess.Enter(ctx, "c1"); err != nil {
		t.Fatalf("Enter: %v", err)
	}

	if err := f.sess.SelectVoice(ctx, "nope"); !errors.Is(err, ErrUnknownVoice) {
		t.Errorf("unknown voice: %v", err)
	}
	if err := f.sess.SelectVoice(ctx, "v3"); !errors.Is(err, ErrVoiceUnavailable) {
		t.Errorf("voice without audio: %v", err)
	}
}

func TestNarrationCompletion_PausedAtStart(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if err := f.sess.Enter(ctx, "c1"); err != nil {
		t.Fatalf("Enter: %v", err)
	}
	if err := f.sess.SelectVoice(ctx, "v2"); err != nil {
		t.Fatalf("SelectVoice: %v", err)
	}

	f.narrEngine.last().onComplete()

	snap := f.sess.Snapshot()
	if snap.NarrationState != media.Stopped {
		t.Errorf("narration state = %v, want Stopped", snap.NarrationState)
	}
	if snap.ActiveVoiceID != "v2" {
		t.Errorf("active voice cleared on completion: %q", snap.ActiveVoiceID)
	}
	if !f.hasNotice(NoticeNarrationFinished) {
		t.Error("narration-finished notice not emitted")
	}
	if f.narrEngine.last().released {
		t.Error("handle released on completion; replay should not reload")
	}

	// replay toggles back to playing without a reload
	if err := f.sess.SelectVoice(ctx, "v2"); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if f.narrEngine.loadCount() != 1 {
		t.Errorf("replay reloaded: %d loads", f.narrEngine.loadCount())
	}
}

func TestSelectMusicTrack_RequiresEntitlement(t *testing.T) {
	f := newFixture()
	f.ent.premium = false
	ctx := context.Background()
	if err := f.sess.Enter(ctx, "c1"); err != nil {
		t.Fatalf("Enter: %v", err)
	}
	if err := f.sess.SelectMusicTrack(ctx, 0); !errors.Is(err, ErrEntitlementRequired) {
		t.Fatalf("expected ErrEntitlementRequired, got %v", err)
	}
	if f.musEngine.loadCount() != 0 {
		t.Error("music started without entitlement")
	}
}

func TestSelectMusicTrack_ToggleOff(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if err := f.sess.Enter(ctx, "c1"); err != nil {
		t.Fatalf("Enter: %v", err)
	}

	if err := f.sess.SelectMusicTrack(ctx, 0); err != nil {
		t.Fatalf("first select: %v", err)
	}
	snap := f.sess.Snapshot()
	if snap.MusicState != media.Playing || snap.ActiveTrack != 0 {
		t.Fatalf("state=%v track=%d", snap.MusicState, snap.ActiveTrack)
	}
	src := f.musEngine.last()
	if !src.opts.Loop {
		t.Error("mood music must loop")
	}
	if src.opts.Volume >= 1.0 {
		t.Errorf("mood music volume = %v, want reduced", src.opts.Volume)
	}

	if err := f.sess.SelectMusicTrack(ctx, 0); err != nil {
		t.Fatalf("second select: %v", err)
	}
	snap = f.sess.Snapshot()
	if snap.MusicState != media.Stopped || snap.ActiveTrack != -1 {
		t.Errorf("after toggle: state=%v track=%d", snap.MusicState, snap.ActiveTrack)
	}
	if !src.released {
		t.Error("toggle off must release the handle")
	}
}

func TestSelectMusicTrack_OutOfRange(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if err := f.sess.Enter(ctx, "c1"); err != nil {
		t.Fatalf("Enter: %v", err)
	}
	if err := f.sess.SelectMusicTrack(ctx, 5); !errors.Is(err, ErrTrackOutOfRange) {
		t.Fatalf("expected ErrTrackOutOfRange, got %v", err)
	}
}

// TestChannels_Independent verifies mood music and narration never stop
// each other.
func TestChannels_Independent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if err := f.sess.Enter(ctx, "c1"); err != nil {
		t.Fatalf("Enter: %v", err)
	}
	if err := f.sess.SelectVoice(ctx, "v2"); err != nil {
		t.Fatalf("SelectVoice: %v", err)
	}
	if err := f.sess.SelectMusicTrack(ctx, 1); err != nil {
		t.Fatalf("SelectMusicTrack: %v", err)
	}

	snap := f.sess.Snapshot()
	if snap.NarrationState != media.Playing || snap.MusicState != media.Playing {
		t.Errorf("narration=%v music=%v, want both playing", snap.NarrationState, snap.MusicState)
	}

	// switching music tracks leaves narration untouched
	if err := f.sess.SelectMusicTrack(ctx, 0); err != nil {
		t.Fatalf("switch track: %v", err)
	}
	if snap := f.sess.Snapshot(); snap.NarrationState != media.Playing {
		t.Errorf("narration stopped by music change: %v", snap.NarrationState)
	}
}

func TestRefreshVoices_EnablesPurchasedVoice(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if err := f.sess.Enter(ctx, "c1"); err != nil {
		t.Fatalf("Enter: %v", err)
	}
	if err := f.sess.SelectVoice(ctx, "v1"); err == nil {
		t.Fatal("expected purchase gate before refresh")
	}

	// the purchase happened through the payments flow; offerings now own v1
	f.fetcher.voices["c1"] = []models.VoiceOffering{
		{VoiceID: "v1", DisplayName: "Aria", HasAudio: true, Owned: true, Price: 50, AudioLocator: strPtr("voices/c1-v1.ogg")},
	}
	if err := f.sess.RefreshVoices(ctx); err != nil {
		t.Fatalf("RefreshVoices: %v", err)
	}
	if err := f.sess.SelectVoice(ctx, "v1"); err != nil {
		t.Fatalf("SelectVoice after purchase: %v", err)
	}
	if snap := f.sess.Snapshot(); snap.ActiveVoiceID != "v1" {
		t.Errorf("active voice = %s", snap.ActiveVoiceID)
	}
}

func TestSelectVoice_LoadFailureReported(t *testing.T) {
	f := newFixture()
	f.narrEngine.failLoad["voices/c1-v2.ogg"] = errors.New("404 from CDN")
	ctx := context.Background()
	if err := f.sess.Enter(ctx, "c1"); err != nil {
		t.Fatalf("Enter: %v", err)
	}

	err := f.sess.SelectVoice(ctx, "v2")
	var loadErr *media.ResourceLoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected ResourceLoadError, got %v", err)
	}
	snap := f.sess.Snapshot()
	if snap.ActiveVoiceID != "" {
		t.Errorf("active voice = %q after load failure", snap.ActiveVoiceID)
	}
	if snap.State != Ready {
		t.Errorf("load failure must not invalidate the chapter: %v", snap.State)
	}
}

func TestPlaybackFailure_EmitsNoticeAndClearsSelection(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if err := f.sess.Enter(ctx, "c1"); err != nil {
		t.Fatalf("Enter: %v", err)
	}
	if err := f.sess.SelectVoice(ctx, "v2"); err != nil {
		t.Fatalf("SelectVoice: %v", err)
	}

	f.narrEngine.last().onError(errors.New("stream stalled"))

	snap := f.sess.Snapshot()
	if snap.ActiveVoiceID != "" {
		t.Errorf("active voice = %q after playback failure", snap.ActiveVoiceID)
	}
	if !f.hasNotice(NoticePlaybackError) {
		t.Error("playback-error notice not emitted")
	}
	if snap.State != Ready {
		t.Errorf("playback failure must not invalidate the chapter: %v", snap.State)
	}
}

func TestActionsIgnoredOutsideReady(t *testing.T) {
	f := newFixture()
	f.fetcher.errs["c1"] = errors.New("down")
	ctx := context.Background()
	_ = f.sess.Enter(ctx, "c1") // Failed

	if err := f.sess.RequestTranslation(ctx, "fr-FR"); !errors.Is(err, ErrNotReady) {
		t.Errorf("translate: %v", err)
	}
	if err := f.sess.SelectVoice(ctx, "v2"); !errors.Is(err, ErrNotReady) {
		t.Errorf("voice: %v", err)
	}
	if err := f.sess.SelectMusicTrack(ctx, 0); !errors.Is(err, ErrNotReady) {
		t.Errorf("music: %v", err)
	}
}
