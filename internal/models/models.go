package models

import "time"

// Chapter represents a single chapter of a serialized story
type Chapter struct {
	ID          string   `json:"id"`
	StoryID     string   `json:"story_id"`
	Number      int      `json:"number"` // ordering key within the story
	Title       string   `json:"title"`
	BodyLocator string   `json:"body_locator"` // content-addressed blob path
	Mood        MoodInfo `json:"mood"`
}

// MoodInfo describes the ambient tone of a chapter and its music tracks
type MoodInfo struct {
	Label  string   `json:"label"`  // display only
	Tracks []string `json:"tracks"` // mood-music blob locators, ordered
}

// VoiceOffering is a purchasable narration-audio variant for a chapter.
// AudioLocator is present iff Owned && HasAudio.
type VoiceOffering struct {
	VoiceID      string  `json:"voice_id"`
	DisplayName  string  `json:"display_name"`
	HasAudio     bool    `json:"has_audio"`
	Owned        bool    `json:"owned"`
	Price        int     `json:"price"` // in-app currency
	AudioLocator *string `json:"audio_locator,omitempty"`
}

// BuyVoicesRequest is the payload for POST /chapter/{id}/voice/buy
type BuyVoicesRequest struct {
	VoiceIDs []string `json:"voice_ids"`
}

// PurchaseResult reports the outcome of a voice purchase
type PurchaseResult struct {
	PurchasedVoiceIDs []string `json:"purchased_voice_ids"`
	Balance           int      `json:"balance"`
}

// TranslationStatus lists the languages a chapter translation is ready in
type TranslationStatus struct {
	ChapterID      string   `json:"chapter_id"`
	ReadyLanguages []string `json:"ready_languages"`
}

// HasLanguage reports whether a ready translation exists for lang
func (s *TranslationStatus) HasLanguage(lang string) bool {
	for _, l := range s.ReadyLanguages {
		if l == lang {
			return true
		}
	}
	return false
}

// TriggerTranslationRequest is the payload for POST /translation/{chapterId}/trigger
type TriggerTranslationRequest struct {
	Language string `json:"lang"`
}

// TranslationContent is the response of GET /translation/{chapterId}/content.
// Exactly one of Text or Locator is set when Ready is true; the backend may
// return the translated body inline or as a blob locator.
type TranslationContent struct {
	Ready   bool    `json:"ready"`
	Text    *string `json:"text,omitempty"`
	Locator *string `json:"locator,omitempty"`
}

// Subscription is the viewer's premium entitlement state
type Subscription struct {
	Premium   bool       `json:"premium"`
	Plan      string     `json:"plan,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}
