package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fableweave/reader/internal/api"
	"github.com/fableweave/reader/internal/config"
	"github.com/fableweave/reader/internal/content"
	"github.com/fableweave/reader/internal/media"
	"github.com/fableweave/reader/internal/session"
	"github.com/fableweave/reader/internal/translation"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg := config.Load()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	ordering := []string{"c1", "c2", "c3"}
	if len(os.Args) > 1 {
		ordering = os.Args[1:]
	}

	client := api.NewClient(cfg.APIBaseURL, cfg.ContentBaseURL, cfg.APIToken, cfg.RequestTimeout)
	fetcher := content.NewFetcher(client)
	coordinator := translation.NewCoordinator(client)

	narration := media.NewChannel("narration", media.NewMPVEngine(cfg.MPVSocket+".narration"))
	music := media.NewChannel("mood-music", media.NewMPVEngine(cfg.MPVSocket+".music"))

	sess := session.New(fetcher, coordinator, client, narration, music, session.Options{
		Ordering:        ordering,
		NarrationVolume: cfg.NarrationVolume,
		MoodMusicVolume: cfg.MoodMusicVolume,
	})
	defer sess.Close()

	sess.SetListener(func(n session.Notice) {
		fmt.Printf("* %s\n", n.Message)
	})

	ctx := context.Background()
	fmt.Println("commands: open <id> | next | prev | show | translate <lang|original> | voice <id> | buy <id> | unlock | music <n> | quit")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		cmd, arg := fields[0], ""
		if len(fields) > 1 {
			arg = fields[1]
		}

		switch cmd {
		case "quit", "q":
			return
		case "open":
			report(sess.Enter(ctx, arg))
			render(sess)
		case "next":
			report(sess.Navigate(ctx, session.Next))
			render(sess)
		case "prev":
			report(sess.Navigate(ctx, session.Prev))
			render(sess)
		case "show":
			render(sess)
		case "translate":
			report(sess.RequestTranslation(ctx, arg))
			render(sess)
		case "voice":
			report(sess.SelectVoice(ctx, arg))
		case "buy":
			snap := sess.Snapshot()
			if _, err := client.BuyVoices(ctx, snap.ChapterID, []string{arg}); err != nil {
				report(err)
				continue
			}
			report(sess.RefreshVoices(ctx))
			report(sess.SelectVoice(ctx, arg))
		case "unlock":
			snap := sess.Snapshot()
			if err := client.UnlockChapter(ctx, snap.ChapterID); err != nil {
				report(err)
				continue
			}
			report(sess.Enter(ctx, snap.ChapterID))
			render(sess)
		case "music":
			index, err := strconv.Atoi(arg)
			if err != nil {
				fmt.Println("music takes a track number")
				continue
			}
			report(sess.SelectMusicTrack(ctx, index))
		default:
			fmt.Println("unknown command:", cmd)
		}
	}
}

// report prints actionable outcomes; quiet on success
func report(err error) {
	if err == nil {
		return
	}
	var purchase *session.PurchaseRequiredError
	switch {
	case errors.As(err, &purchase):
		fmt.Printf("voice %s costs %d — use: buy %s\n", purchase.VoiceID, purchase.Price, purchase.VoiceID)
	case errors.Is(err, session.ErrEntitlementRequired):
		fmt.Println("premium subscription required")
	case errors.Is(err, translation.ErrPending):
		fmt.Println("translation pending, retry shortly")
	case errors.Is(err, api.ErrAccessDenied):
		fmt.Println("chapter is paywalled — use: unlock")
	case errors.Is(err, session.ErrBoundary):
		// the listener already printed the notice
	default:
		fmt.Println("error:", err)
	}
}

func render(sess *session.Session) {
	snap := sess.Snapshot()
	fmt.Printf("[%s] %s (%s) lang=%s mood=%s\n", snap.State, snap.ChapterID, snap.Title, snap.ActiveLanguage, snap.MoodLabel)
	if snap.State != session.Ready {
		return
	}
	fmt.Println(snap.DisplayedText)
	for _, v := range snap.Voices {
		marker := " "
		if v.VoiceID == snap.ActiveVoiceID {
			marker = "*"
		}
		fmt.Printf("  %s voice %-10s owned=%-5v price=%d\n", marker, v.VoiceID, v.Owned, v.Price)
	}
	for i, track := range snap.MusicTracks {
		marker := " "
		if i == snap.ActiveTrack {
			marker = "*"
		}
		fmt.Printf("  %s music %d %s\n", marker, i, track)
	}
}
