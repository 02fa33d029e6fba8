package setup

import (
	"context"
	"time"

	"github.com/itchan-dev/mediadesk/frontend/internal/apiclient"
	"github.com/itchan-dev/mediadesk/frontend/internal/catalog"
	"github.com/itchan-dev/mediadesk/frontend/internal/dispatcher"
	"github.com/itchan-dev/mediadesk/frontend/internal/handler"
	"github.com/itchan-dev/mediadesk/frontend/internal/markdown"
	"github.com/itchan-dev/mediadesk/frontend/internal/resolver"
	"github.com/itchan-dev/mediadesk/frontend/internal/session"
	"github.com/itchan-dev/mediadesk/shared/config"
)

const (
	sessionJanitorInterval = 1 * time.Minute
	sessionIdleTTL         = 30 * time.Minute
)

type Dependencies struct {
	Handler    *handler.Handler
	Sessions   *session.Registry
	Catalog    *catalog.Cache
	Public     config.Public
	CancelFunc context.CancelFunc
}

// SetupDependencies wires the UI server and starts its background loops.
// CancelFunc stops them and closes every session.
func SetupDependencies(cfg *config.Config) (*Dependencies, error) {
	ctx, cancel := context.WithCancel(context.Background())
	ui := cfg.Public.UI

	client := apiclient.New(ui.BackendURL)
	cache := catalog.NewCache(client)
	cache.StartBackgroundUpdate(ctx, ui.CatalogRefresh)

	sessions := session.NewRegistry(func() session.Chat {
		return NewChat(client, cache, ui)
	})
	sessions.StartJanitor(ctx, sessionJanitorInterval, sessionIdleTTL)

	h := handler.New(sessions, cache, markdown.New(), ui.SecureCookies)

	return &Dependencies{
		Handler:    h,
		Sessions:   sessions,
		Catalog:    cache,
		Public:     cfg.Public,
		CancelFunc: cancel,
	}, nil
}

// NewChat builds the dispatcher for one session. Sessions share the client and
// the catalog cache, never correlation state.
func NewChat(client *apiclient.APIClient, cache *catalog.Cache, ui config.UI) *dispatcher.Dispatcher {
	res := resolver.New(cache,
		resolver.WithRetry(ui.ResolveRetries, ui.ResolveRetryDelay),
		resolver.WithRecentWindow(ui.RecentWindow),
	)
	return dispatcher.New(client, res, cache,
		dispatcher.WithPollIntervals(ui.PollInterval, ui.PollBackoff),
		dispatcher.WithMaxWait(ui.PollMaxWait),
	)
}
