// Package content resolves chapter identifiers to metadata, body text and
// voice offerings. Fetches degrade rather than fail where the chapter can
// still be displayed: a body blob that cannot be retrieved becomes
// placeholder text, and a failed voice listing becomes an empty list.
package content

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/fableweave/reader/internal/api"
	"github.com/fableweave/reader/internal/models"
)

// PlaceholderBody is shown when the chapter body blob cannot be retrieved
const PlaceholderBody = "content unavailable"

// Fetcher resolves chapters against the platform API
type Fetcher struct {
	client *api.Client
}

// NewFetcher creates a new content fetcher
func NewFetcher(client *api.Client) *Fetcher {
	return &Fetcher{client: client}
}

// FetchChapter fetches chapter metadata. Access-control rejections surface
// as api.ErrAccessDenied and missing chapters as api.ErrNotFound.
func (f *Fetcher) FetchChapter(ctx context.Context, chapterID string) (*models.Chapter, error) {
	chapter, err := f.client.GetChapter(ctx, chapterID)
	if err != nil {
		return nil, fmt.Errorf("chapter %s: %w", chapterID, err)
	}
	return chapter, nil
}

// ResolveBody retrieves the chapter body blob. Transport failures degrade to
// placeholder text so body display never fails an otherwise loaded chapter.
func (f *Fetcher) ResolveBody(ctx context.Context, locator string) string {
	text, err := f.client.GetBlob(ctx, locator)
	if err != nil {
		log.Warn().Err(err).Str("locator", locator).Msg("Body blob fetch failed, using placeholder")
		return PlaceholderBody
	}
	return text
}

// FetchVoiceOfferings fetches the chapter's voice offerings. Failures degrade
// to an empty list; an audio locator is kept only on owned offerings that
// actually have audio.
func (f *Fetcher) FetchVoiceOfferings(ctx context.Context, chapterID string) []models.VoiceOffering {
	offerings, err := f.client.GetVoiceOfferings(ctx, chapterID)
	if err != nil {
		log.Warn().Err(err).Str("chapter_id", chapterID).Msg("Voice offerings fetch failed")
		return nil
	}
	for i := range offerings {
		if !offerings[i].Owned || !offerings[i].HasAudio {
			offerings[i].AudioLocator = nil
		}
	}
	return offerings
}
