package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/itchan-dev/mediadesk/frontend/internal/apiclient"
	"github.com/itchan-dev/mediadesk/frontend/internal/catalog"
	"github.com/itchan-dev/mediadesk/frontend/internal/setup"
	"github.com/itchan-dev/mediadesk/shared/config"
	"github.com/itchan-dev/mediadesk/shared/domain"
	"github.com/itchan-dev/mediadesk/shared/logger"
)

const (
	DefaultSendWait = 2 * time.Minute
	statusCheck     = 100 * time.Millisecond
)

type SendOptions struct {
	// Video is a catalog path or file name attached as the current preview.
	Video string
	// Wait bounds the whole run. Zero means DefaultSendWait.
	Wait time.Duration
}

type SendResult struct {
	Transcript    []domain.ChatMessage
	Artifact      *domain.ResolvedArtifact
	Notifications []domain.Notification
}

// Send runs one command through a fresh dispatcher and waits for the reply and,
// when the reply names one, the produced artifact.
func Send(ctx context.Context, cfg *config.Config, text string, opts SendOptions) (SendResult, error) {
	ui := cfg.Public.UI
	client := apiclient.New(ui.BackendURL)
	cache := catalog.NewCache(client)
	if err := cache.Update(ctx); err != nil {
		logger.Log.Warn("catalog unavailable, continuing without it", "component", "send", "error", err)
	}

	var current domain.MediaContext
	if opts.Video != "" {
		item, ok := findVideo(cache.Snapshot(), opts.Video)
		if !ok {
			return SendResult{}, fmt.Errorf("video %q is not in the catalog", opts.Video)
		}
		current.Video = &item
	}

	d := setup.NewChat(client, cache, ui)
	defer d.Close()

	var (
		mu     sync.Mutex
		result SendResult
	)
	artifacts := make(chan domain.ResolvedArtifact, 1)
	d.OnArtifactResolved(func(res domain.ResolvedArtifact) {
		select {
		case artifacts <- res:
		default:
		}
	})
	d.OnNotification(func(n domain.Notification) {
		mu.Lock()
		result.Notifications = append(result.Notifications, n)
		mu.Unlock()
	})

	wait := opts.Wait
	if wait <= 0 {
		wait = DefaultSendWait
	}
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	d.Send(text, current)

	// time the resolver may still need after the reply arrived
	grace := time.Duration(ui.ResolveRetries+1)*ui.ResolveRetryDelay + time.Second
	var graceC <-chan time.Time
	ticker := time.NewTicker(statusCheck)
	defer ticker.Stop()

loop:
	for {
		select {
		case res := <-artifacts:
			result.Artifact = &res
			break loop
		case <-graceC:
			break loop
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			_, status, ok := d.CurrentRequestStatus()
			switch {
			case !ok || status == domain.Abandoned:
				break loop
			case status == domain.Resolved && graceC == nil:
				graceC = time.After(grace)
			}
		}
	}

	// no listener runs after Close
	d.Close()
	result.Transcript = d.Transcript()
	return result, nil
}

func findVideo(c domain.Catalog, ref string) (domain.MediaItem, bool) {
	if item, ok := c.FindByPath(ref); ok {
		return item, true
	}
	for _, item := range c.Videos {
		if strings.EqualFold(item.Name, ref) {
			return item, true
		}
	}
	return domain.MediaItem{}, false
}
