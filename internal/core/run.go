package core

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/rindexer-go/rindexer/internal/hotreload"
	"github.com/rindexer-go/rindexer/internal/metrics"
	"github.com/rindexer-go/rindexer/pkg/api"
)

// Run blocks until ctx is cancelled, alongside whichever of the
// hot-reload watcher, metrics server, and API server the manifest
// enables. Every pipeline built by New is already running by the time
// Run is called.
func (e *Engine) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if e.manifest.HotReload.Enabled {
		orch := hotreload.NewOrchestrator(e.manifestPath, e.manifest, e, e.log)
		g.Go(func() error { return orch.Run(gctx) })
	}

	if e.manifest.API != nil && e.manifest.API.Enabled {
		srv := api.NewServer(e.manifest.API, e, e.log)
		g.Go(func() error { return srv.Start(gctx) })
	}

	if e.manifest.Metrics != nil && e.manifest.Metrics.Enabled {
		srv := metrics.NewServer(e.manifest.Metrics)
		g.Go(func() error { return srv.Start(gctx) })
	}

	<-gctx.Done()
	return g.Wait()
}
