package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/fableweave/reader/internal/models"
)

// GetChapter fetches chapter metadata, body locator and mood info
func (c *Client) GetChapter(ctx context.Context, chapterID string) (*models.Chapter, error) {
	var chapter models.Chapter
	if err := c.getJSON(ctx, "/chapter/"+url.PathEscape(chapterID), &chapter); err != nil {
		return nil, fmt.Errorf("fetch chapter %s: %w", chapterID, err)
	}
	return &chapter, nil
}

// GetVoiceOfferings fetches the narration-voice offerings for a chapter
// with the caller's ownership and pricing state.
func (c *Client) GetVoiceOfferings(ctx context.Context, chapterID string) ([]models.VoiceOffering, error) {
	var offerings []models.VoiceOffering
	if err := c.getJSON(ctx, "/chapter/"+url.PathEscape(chapterID)+"/voices", &offerings); err != nil {
		return nil, fmt.Errorf("fetch voices for chapter %s: %w", chapterID, err)
	}
	return offerings, nil
}

// UnlockChapter purchases access to a paywalled chapter
func (c *Client) UnlockChapter(ctx context.Context, chapterID string) error {
	if err := c.postJSON(ctx, "/chapter/"+url.PathEscape(chapterID)+"/unlock", struct{}{}, nil); err != nil {
		return fmt.Errorf("unlock chapter %s: %w", chapterID, err)
	}
	return nil
}

// BuyVoices purchases the given voice offerings with in-app currency
func (c *Client) BuyVoices(ctx context.Context, chapterID string, voiceIDs []string) (*models.PurchaseResult, error) {
	var result models.PurchaseResult
	req := models.BuyVoicesRequest{VoiceIDs: voiceIDs}
	if err := c.postJSON(ctx, "/chapter/"+url.PathEscape(chapterID)+"/voice/buy", req, &result); err != nil {
		return nil, fmt.Errorf("buy voices for chapter %s: %w", chapterID, err)
	}
	return &result, nil
}
