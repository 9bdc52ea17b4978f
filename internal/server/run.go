package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// Run serves the API on addr and diagnostics on diagAddr until ctx is
// done, then shuts both listeners down within shutdownTimeout.
func (a *App) Run(ctx context.Context, addr, diagAddr string, shutdownTimeout time.Duration) error {
	servers := []*http.Server{
		{Addr: addr, Handler: a.Router(), ReadHeaderTimeout: 10 * time.Second},
	}

	if diagAddr != "" {
		servers = append(servers, &http.Server{Addr: diagAddr, Handler: a.DiagRouter(), ReadHeaderTimeout: 10 * time.Second})
	}

	g, gctx := errgroup.WithContext(ctx)

	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			a.sugarLogger.Infow("listening", "addr", srv.Addr)

			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}

			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		a.draining.Store(true)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var err error
		for _, srv := range servers {
			if serr := srv.Shutdown(shutdownCtx); serr != nil {
				err = errors.Join(err, serr)
			}
		}

		a.sugarLogger.Infow("listeners stopped")

		return err
	})

	return g.Wait()
}
