// Package devserver is an in-memory implementation of the platform's REST
// surface, used for local development and integration-style tests.
package devserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/fableweave/reader/internal/models"
)

// Server serves the catalog over the client's expected REST surface
type Server struct {
	catalog *Catalog
}

// NewServer creates a dev server over a catalog
func NewServer(catalog *Catalog) *Server {
	return &Server{catalog: catalog}
}

// Handler builds the full HTTP handler: a public blob route plus the
// authenticated /v1 API, CORS-wrapped for browser builds of the client.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/blob/{path:.*}", s.GetBlob).Methods("GET")

	api := r.PathPrefix("/v1").Subrouter()
	api.Use(s.authMiddleware)
	api.HandleFunc("/chapter/{id}", s.GetChapter).Methods("GET")
	api.HandleFunc("/chapter/{id}/unlock", s.UnlockChapter).Methods("POST")
	api.HandleFunc("/chapter/{id}/voices", s.GetVoices).Methods("GET")
	api.HandleFunc("/chapter/{id}/voice/buy", s.BuyVoices).Methods("POST")
	api.HandleFunc("/translation/{chapterId}/status", s.TranslationStatus).Methods("GET")
	api.HandleFunc("/translation/{chapterId}/trigger", s.TriggerTranslation).Methods("POST")
	api.HandleFunc("/translation/{chapterId}/content", s.TranslationContent).Methods("GET")
	api.HandleFunc("/billing/subscription", s.Subscription).Methods("GET")

	return cors.AllowAll().Handler(r)
}

// GetChapter handles GET /v1/chapter/{id}
func (s *Server) GetChapter(w http.ResponseWriter, r *http.Request) {
	acct := accountFrom(r)
	entry := s.chapterEntry(mux.Vars(r)["id"])
	if entry == nil {
		writeJSONError(w, http.StatusNotFound, "chapter not found")
		return
	}
	if entry.Locked && !s.isUnlocked(acct, entry.Chapter.ID) {
		writeJSONError(w, http.StatusForbidden, "chapter locked")
		return
	}
	writeJSON(w, http.StatusOK, entry.Chapter)
}

// UnlockChapter handles POST /v1/chapter/{id}/unlock (the paywall purchase)
func (s *Server) UnlockChapter(w http.ResponseWriter, r *http.Request) {
	acct := accountFrom(r)
	entry := s.chapterEntry(mux.Vars(r)["id"])
	if entry == nil {
		writeJSONError(w, http.StatusNotFound, "chapter not found")
		return
	}
	s.catalog.mu.Lock()
	acct.unlocked[entry.Chapter.ID] = true
	s.catalog.mu.Unlock()
	log.Info().Str("account", acct.Name).Str("chapter_id", entry.Chapter.ID).Msg("Chapter unlocked")
	w.WriteHeader(http.StatusNoContent)
}

// GetVoices handles GET /v1/chapter/{id}/voices
func (s *Server) GetVoices(w http.ResponseWriter, r *http.Request) {
	acct := accountFrom(r)
	entry := s.chapterEntry(mux.Vars(r)["id"])
	if entry == nil {
		writeJSONError(w, http.StatusNotFound, "chapter not found")
		return
	}

	offerings := make([]models.VoiceOffering, len(entry.Voices))
	for i, v := range entry.Voices {
		owned := s.catalog.ownsVoice(acct, entry.Chapter.ID, v.ID)
		offering := models.VoiceOffering{
			VoiceID:     v.ID,
			DisplayName: v.DisplayName,
			HasAudio:    v.HasAudio,
			Owned:       owned,
			Price:       v.Price,
		}
		if owned && v.HasAudio {
			locator := v.Locator
			offering.AudioLocator = &locator
		}
		offerings[i] = offering
	}
	writeJSON(w, http.StatusOK, offerings)
}

// BuyVoices handles POST /v1/chapter/{id}/voice/buy
func (s *Server) BuyVoices(w http.ResponseWriter, r *http.Request) {
	acct := accountFrom(r)
	entry := s.chapterEntry(mux.Vars(r)["id"])
	if entry == nil {
		writeJSONError(w, http.StatusNotFound, "chapter not found")
		return
	}

	var req models.BuyVoicesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.catalog.mu.Lock()
	defer s.catalog.mu.Unlock()

	total := 0
	toBuy := make([]Voice, 0, len(req.VoiceIDs))
	for _, id := range req.VoiceIDs {
		voice, ok := findVoice(entry.Voices, id)
		if !ok {
			writeJSONError(w, http.StatusNotFound, "voice not found: "+id)
			return
		}
		if !voice.HasAudio {
			writeJSONError(w, http.StatusBadRequest, "voice has no audio: "+id)
			return
		}
		if acct.ownedVoices[entry.Chapter.ID][id] {
			continue
		}
		total += voice.Price
		toBuy = append(toBuy, voice)
	}
	if total > acct.Balance {
		writeJSONError(w, http.StatusPaymentRequired, "insufficient balance")
		return
	}

	acct.Balance -= total
	purchased := make([]string, 0, len(toBuy))
	for _, voice := range toBuy {
		if acct.ownedVoices[entry.Chapter.ID] == nil {
			acct.ownedVoices[entry.Chapter.ID] = make(map[string]bool)
		}
		acct.ownedVoices[entry.Chapter.ID][voice.ID] = true
		purchased = append(purchased, voice.ID)
	}

	log.Info().
		Str("account", acct.Name).
		Str("chapter_id", entry.Chapter.ID).
		Int("spent", total).
		Msg("Voices purchased")
	writeJSON(w, http.StatusOK, models.PurchaseResult{PurchasedVoiceIDs: purchased, Balance: acct.Balance})
}

// TranslationStatus handles GET /v1/translation/{chapterId}/status
func (s *Server) TranslationStatus(w http.ResponseWriter, r *http.Request) {
	chapterID := mux.Vars(r)["chapterId"]
	if s.chapterEntry(chapterID) == nil {
		writeJSONError(w, http.StatusNotFound, "chapter not found")
		return
	}
	writeJSON(w, http.StatusOK, models.TranslationStatus{
		ChapterID:      chapterID,
		ReadyLanguages: s.catalog.readyLanguages(chapterID, time.Now()),
	})
}

// TriggerTranslation handles POST /v1/translation/{chapterId}/trigger.
// Re-triggering a language already generating or generated is a no-op.
func (s *Server) TriggerTranslation(w http.ResponseWriter, r *http.Request) {
	chapterID := mux.Vars(r)["chapterId"]
	if s.chapterEntry(chapterID) == nil {
		writeJSONError(w, http.StatusNotFound, "chapter not found")
		return
	}
	var req models.TriggerTranslationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Language == "" {
		writeJSONError(w, http.StatusBadRequest, "lang is required")
		return
	}
	s.catalog.trigger(chapterID, req.Language, time.Now())
	w.WriteHeader(http.StatusAccepted)
}

// TranslationContent handles GET /v1/translation/{chapterId}/content?lang=
func (s *Server) TranslationContent(w http.ResponseWriter, r *http.Request) {
	chapterID := mux.Vars(r)["chapterId"]
	if s.chapterEntry(chapterID) == nil {
		writeJSONError(w, http.StatusNotFound, "chapter not found")
		return
	}
	lang := r.URL.Query().Get("lang")
	if lang == "" {
		writeJSONError(w, http.StatusBadRequest, "lang is required")
		return
	}
	locator, ok := s.catalog.translationLocator(chapterID, lang, time.Now())
	if !ok {
		writeJSON(w, http.StatusOK, models.TranslationContent{Ready: false})
		return
	}
	writeJSON(w, http.StatusOK, models.TranslationContent{Ready: true, Locator: &locator})
}

// Subscription handles GET /v1/billing/subscription
func (s *Server) Subscription(w http.ResponseWriter, r *http.Request) {
	acct := accountFrom(r)
	sub := models.Subscription{Premium: acct.Premium}
	if acct.Premium {
		sub.Plan = "monthly"
	}
	writeJSON(w, http.StatusOK, sub)
}

// GetBlob handles GET /blob/{path} (unauthenticated content base)
func (s *Server) GetBlob(w http.ResponseWriter, r *http.Request) {
	path := mux.Vars(r)["path"]
	s.catalog.mu.Lock()
	content, ok := s.catalog.blobs[path]
	s.catalog.mu.Unlock()
	if !ok {
		writeJSONError(w, http.StatusNotFound, "blob not found")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(content))
}

func (s *Server) chapterEntry(id string) *ChapterEntry {
	s.catalog.mu.Lock()
	defer s.catalog.mu.Unlock()
	return s.catalog.chapters[id]
}

func (s *Server) isUnlocked(acct *Account, chapterID string) bool {
	s.catalog.mu.Lock()
	defer s.catalog.mu.Unlock()
	return acct.unlocked[chapterID]
}

func findVoice(voices []Voice, id string) (Voice, bool) {
	for _, v := range voices {
		if v.ID == id {
			return v, true
		}
	}
	return Voice{}, false
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
