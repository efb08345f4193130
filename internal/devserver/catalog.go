package devserver

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/fableweave/reader/internal/models"
)

// Voice is a narration offering in the catalog (ownership lives on accounts)
type Voice struct {
	ID          string
	DisplayName string
	HasAudio    bool
	Price       int
	Locator     string
}

// ChapterEntry is a chapter plus its serving state
type ChapterEntry struct {
	Chapter models.Chapter
	Locked  bool
	Voices  []Voice
}

// Account is an in-memory user with a bcrypt-hashed bearer token
type Account struct {
	ID        uuid.UUID
	Name      string
	TokenHash []byte
	Premium   bool
	Balance   int

	ownedVoices map[string]map[string]bool // chapterID -> voiceID
	unlocked    map[string]bool            // chapterID
}

// translationState tracks one (chapter, language) generation
type translationState struct {
	ReadyAt time.Time
	Locator string
}

// Catalog is the dev backend's in-memory data store
type Catalog struct {
	mu               sync.Mutex
	chapters         map[string]*ChapterEntry
	blobs            map[string]string
	translations     map[string]map[string]*translationState
	accounts         []*Account
	translationDelay time.Duration
}

// NewCatalog creates an empty catalog. translationDelay simulates backend
// generation time before a triggered translation becomes ready.
func NewCatalog(translationDelay time.Duration) *Catalog {
	return &Catalog{
		chapters:         make(map[string]*ChapterEntry),
		blobs:            make(map[string]string),
		translations:     make(map[string]map[string]*translationState),
		translationDelay: translationDelay,
	}
}

// AddAccount registers an account authenticated by token
func (c *Catalog) AddAccount(name, token string, premium bool, balance int) (*Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash token: %w", err)
	}
	acct := &Account{
		ID:          uuid.New(),
		Name:        name,
		TokenHash:   hash,
		Premium:     premium,
		Balance:     balance,
		ownedVoices: make(map[string]map[string]bool),
		unlocked:    make(map[string]bool),
	}
	c.mu.Lock()
	c.accounts = append(c.accounts, acct)
	c.mu.Unlock()
	return acct, nil
}

// AddChapter stores a chapter, its body blob and its mood-track blobs
func (c *Catalog) AddChapter(entry ChapterEntry, body string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blobs[entry.Chapter.BodyLocator] = body
	for _, track := range entry.Chapter.Mood.Tracks {
		if _, ok := c.blobs[track]; !ok {
			c.blobs[track] = "audio:" + track
		}
	}
	for _, v := range entry.Voices {
		if v.HasAudio {
			c.blobs[v.Locator] = "audio:" + v.Locator
		}
	}
	c.chapters[entry.Chapter.ID] = &entry
}

// findAccount returns the account whose token matches, constant-cost per account
func (c *Catalog) findAccount(token string) *Account {
	c.mu.Lock()
	accounts := append([]*Account(nil), c.accounts...)
	c.mu.Unlock()
	for _, acct := range accounts {
		if bcrypt.CompareHashAndPassword(acct.TokenHash, []byte(token)) == nil {
			return acct
		}
	}
	return nil
}

// ownsVoice reports whether acct owns voiceID on chapterID
func (c *Catalog) ownsVoice(acct *Account, chapterID, voiceID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return acct.ownedVoices[chapterID][voiceID]
}

// readyLanguages lists languages whose generation has finished for chapterID
func (c *Catalog) readyLanguages(chapterID string, now time.Time) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	langs := make([]string, 0)
	for lang, state := range c.translations[chapterID] {
		if !state.ReadyAt.After(now) {
			langs = append(langs, lang)
		}
	}
	return langs
}

// trigger starts generation for (chapterID, lang); idempotent when already
// triggered. Translated text is fabricated from the chapter body and stored
// as a blob so content responses can use the locator shape.
func (c *Catalog) trigger(chapterID, lang string, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.translations[chapterID]; !ok {
		c.translations[chapterID] = make(map[string]*translationState)
	}
	if _, ok := c.translations[chapterID][lang]; ok {
		return
	}
	entry := c.chapters[chapterID]
	body := ""
	if entry != nil {
		body = c.blobs[entry.Chapter.BodyLocator]
	}
	locator := fmt.Sprintf("translations/%s/%s.txt", chapterID, lang)
	c.blobs[locator] = fmt.Sprintf("[%s] %s", lang, body)
	c.translations[chapterID][lang] = &translationState{
		ReadyAt: now.Add(c.translationDelay),
		Locator: locator,
	}
}

// translationLocator returns the blob locator for a ready translation
func (c *Catalog) translationLocator(chapterID, lang string, now time.Time) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state := c.translations[chapterID][lang]
	if state == nil || state.ReadyAt.After(now) {
		return "", false
	}
	return state.Locator, true
}

// Seed fills the catalog with a demo story and two accounts. Tokens are
// "reader-token" (free tier) and "premium-token" (premium).
func Seed(translationDelay time.Duration) (*Catalog, error) {
	c := NewCatalog(translationDelay)

	if _, err := c.AddAccount("reader", "reader-token", false, 200); err != nil {
		return nil, err
	}
	if _, err := c.AddAccount("premium", "premium-token", true, 500); err != nil {
		return nil, err
	}

	voices := []Voice{
		{ID: "v-ella", DisplayName: "Ella", HasAudio: true, Price: 50, Locator: "voices/ella-%s.ogg"},
		{ID: "v-kai", DisplayName: "Kai", HasAudio: true, Price: 80, Locator: "voices/kai-%s.ogg"},
		{ID: "v-lumen", DisplayName: "Lumen", HasAudio: false, Price: 0},
	}
	bodies := []string{
		"The lighthouse keeper counted ships that never came.",
		"By morning the harbor had swallowed its own reflection.",
		"Nobody asked the sea what it wanted; it told them anyway.",
	}
	moods := []string{"wistful", "uneasy", "storm"}

	for i, body := range bodies {
		id := fmt.Sprintf("c%d", i+1)
		entryVoices := make([]Voice, len(voices))
		for j, v := range voices {
			entryVoices[j] = v
			if v.HasAudio {
				entryVoices[j].Locator = fmt.Sprintf(v.Locator, id)
			}
		}
		c.AddChapter(ChapterEntry{
			Chapter: models.Chapter{
				ID:          id,
				StoryID:     "harborlight",
				Number:      i + 1,
				Title:       fmt.Sprintf("Chapter %d", i+1),
				BodyLocator: fmt.Sprintf("chapters/%s.txt", id),
				Mood: models.MoodInfo{
					Label:  moods[i],
					Tracks: []string{fmt.Sprintf("music/%s-a.ogg", moods[i]), fmt.Sprintf("music/%s-b.ogg", moods[i])},
				},
			},
			Locked: i == 2, // last chapter is paywalled
			Voices: entryVoices,
		}, body)
	}
	return c, nil
}
