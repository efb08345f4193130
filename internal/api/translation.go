package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/fableweave/reader/internal/models"
)

// GetTranslationStatus reports which languages a chapter translation is ready in
func (c *Client) GetTranslationStatus(ctx context.Context, chapterID string) (*models.TranslationStatus, error) {
	var status models.TranslationStatus
	if err := c.getJSON(ctx, "/translation/"+url.PathEscape(chapterID)+"/status", &status); err != nil {
		return nil, fmt.Errorf("translation status for chapter %s: %w", chapterID, err)
	}
	return &status, nil
}

// TriggerTranslation asks the backend to start generating a translation.
// The backend treats concurrent triggers for the same language as one.
func (c *Client) TriggerTranslation(ctx context.Context, chapterID, lang string) error {
	req := models.TriggerTranslationRequest{Language: lang}
	if err := c.postJSON(ctx, "/translation/"+url.PathEscape(chapterID)+"/trigger", req, nil); err != nil {
		return fmt.Errorf("trigger translation for chapter %s: %w", chapterID, err)
	}
	return nil
}

// GetTranslationContent fetches the translated body for a language. The
// result carries the text inline, as a blob locator, or as not-yet-ready.
func (c *Client) GetTranslationContent(ctx context.Context, chapterID, lang string) (*models.TranslationContent, error) {
	endpoint := "/translation/" + url.PathEscape(chapterID) + "/content?lang=" + url.QueryEscape(lang)
	var content models.TranslationContent
	if err := c.getJSON(ctx, endpoint, &content); err != nil {
		return nil, fmt.Errorf("translation content for chapter %s: %w", chapterID, err)
	}
	return &content, nil
}

// GetSubscription fetches the viewer's premium entitlement state
func (c *Client) GetSubscription(ctx context.Context) (*models.Subscription, error) {
	var sub models.Subscription
	if err := c.getJSON(ctx, "/billing/subscription", &sub); err != nil {
		return nil, fmt.Errorf("subscription status: %w", err)
	}
	return &sub, nil
}

// HasPremium reports whether the viewer holds a premium subscription
func (c *Client) HasPremium(ctx context.Context) (bool, error) {
	sub, err := c.GetSubscription(ctx)
	if err != nil {
		return false, err
	}
	return sub.Premium, nil
}
