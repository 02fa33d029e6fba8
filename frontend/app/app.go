// Package app is the entry point of the UI session server and the one-shot
// command runner.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/itchan-dev/mediadesk/frontend/internal/router"
	"github.com/itchan-dev/mediadesk/frontend/internal/setup"
	"github.com/itchan-dev/mediadesk/shared/config"
	"github.com/itchan-dev/mediadesk/shared/utils"
)

const readHeaderTimeout = 5 * time.Second

// Serve runs the UI session server until ctx is done.
func Serve(ctx context.Context, cfg *config.Config) error {
	deps, err := setup.SetupDependencies(cfg)
	if err != nil {
		return err
	}
	defer deps.CancelFunc()

	srv := &http.Server{
		Addr:              cfg.Public.UI.Addr,
		Handler:           router.New(deps),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	srv.RegisterOnShutdown(deps.Handler.Shutdown)
	return utils.ListenAndServe(ctx, srv, "ui")
}
