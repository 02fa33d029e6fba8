// Package app is the entry point of the media and chat server.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/itchan-dev/mediadesk/backend/internal/router"
	"github.com/itchan-dev/mediadesk/backend/internal/setup"
	"github.com/itchan-dev/mediadesk/shared/config"
	"github.com/itchan-dev/mediadesk/shared/utils"
)

const readHeaderTimeout = 5 * time.Second

// Serve runs the media server until ctx is done.
func Serve(ctx context.Context, cfg *config.Config) error {
	deps, err := setup.SetupDependencies(cfg)
	if err != nil {
		return err
	}
	defer deps.Chat.Close()

	// no WriteTimeout: file streaming and synchronous agent runs are long
	srv := &http.Server{
		Addr:              cfg.Public.Media.Addr,
		Handler:           router.New(deps),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return utils.ListenAndServe(ctx, srv, "media")
}
