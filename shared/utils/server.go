package utils

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/itchan-dev/mediadesk/shared/logger"
)

const shutdownTimeout = 10 * time.Second

// ListenAndServe runs srv until ctx is done, then shuts it down gracefully.
func ListenAndServe(ctx context.Context, srv *http.Server, component string) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info("server started", "component", component, "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Log.Info("shutting down server", "component", component)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
