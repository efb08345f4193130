// Package translation ensures a chapter translation exists for a target
// language and resolves it to final text.
package translation

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/fableweave/reader/internal/models"
)

// ErrPending is returned when a translation has been requested but is not
// ready yet; the caller may retry later.
var ErrPending = errors.New("translation pending")

// ContentAPI is the slice of the platform API the coordinator needs
type ContentAPI interface {
	GetTranslationStatus(ctx context.Context, chapterID string) (*models.TranslationStatus, error)
	TriggerTranslation(ctx context.Context, chapterID, lang string) error
	GetTranslationContent(ctx context.Context, chapterID, lang string) (*models.TranslationContent, error)
	GetBlob(ctx context.Context, locator string) (string, error)
}

// Coordinator drives translation readiness and content resolution
type Coordinator struct {
	api ContentAPI
}

// NewCoordinator creates a new translation coordinator
func NewCoordinator(api ContentAPI) *Coordinator {
	return &Coordinator{api: api}
}

// Fetch returns the translated body text for (chapterID, lang). When no
// translation exists yet it triggers generation and returns ErrPending.
// Trigger failures are swallowed: generation may already be running for
// another client and the backend deduplicates concurrent triggers.
func (c *Coordinator) Fetch(ctx context.Context, chapterID, lang string) (string, error) {
	status, err := c.api.GetTranslationStatus(ctx, chapterID)
	if err != nil {
		return "", fmt.Errorf("translation status: %w", err)
	}

	if !status.HasLanguage(lang) {
		if err := c.api.TriggerTranslation(ctx, chapterID, lang); err != nil {
			log.Debug().Err(err).
				Str("chapter_id", chapterID).
				Str("lang", lang).
				Msg("Translation trigger failed, assuming generation in progress")
		}
	}

	content, err := c.api.GetTranslationContent(ctx, chapterID, lang)
	if err != nil {
		return "", fmt.Errorf("translation content: %w", err)
	}
	return c.resolve(ctx, content)
}

// resolve normalizes the inline-text / blob-locator response shape into text
func (c *Coordinator) resolve(ctx context.Context, content *models.TranslationContent) (string, error) {
	if !content.Ready {
		return "", ErrPending
	}
	if content.Text != nil {
		return *content.Text, nil
	}
	if content.Locator != nil {
		text, err := c.api.GetBlob(ctx, *content.Locator)
		if err != nil {
			return "", fmt.Errorf("translation blob: %w", err)
		}
		return text, nil
	}
	return "", fmt.Errorf("translation content ready but carries neither text nor locator")
}
