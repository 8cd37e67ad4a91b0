package app

import (
	"context"
	"errors"
	"net/http"

	"planner-agent/internal/api"
	"planner-agent/internal/config"
	"planner-agent/internal/logger"
	"planner-agent/internal/selection"
	"planner-agent/internal/session"
)

type App struct {
	httpServer *http.Server
	infra      *Infra

	Session   *session.Store
	Selection *selection.Store

	stopRestore context.CancelFunc
	restored    chan struct{}
}

// New wires storage, the backend client and both stores, then starts the
// session restore in the background. Guarded routes answer "loading" until
// it finishes.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	infra, err := setupInfra(ctx, cfg)
	if err != nil {
		return nil, err
	}

	client, err := api.New(cfg.APIBaseURL, infra.Storage, api.WithTimeout(cfg.APITimeout))
	if err != nil {
		_ = infra.Close()
		return nil, err
	}

	sess := session.New(client, infra.Storage)
	sel := selection.New(client, infra.Storage)
	sess.Subscribe(sel)

	router := setupHTTP(client, sess, sel)

	restoreCtx, cancel := context.WithCancel(context.Background())
	a := &App{
		httpServer: &http.Server{
			Addr:    ":" + cfg.AppPort,
			Handler: router,
		},
		infra:       infra,
		Session:     sess,
		Selection:   sel,
		stopRestore: cancel,
		restored:    make(chan struct{}),
	}

	go a.restore(restoreCtx)

	return a, nil
}

// restore runs the startup sequence on one goroutine: the session first,
// then the wedding list for whatever session resulted.
func (a *App) restore(ctx context.Context) {
	defer close(a.restored)

	a.Session.Initialize(ctx)
	a.Selection.Load(ctx)

	snap := a.Session.Snapshot()
	logger.Info("startup restore finished", map[string]any{
		"status": snap.Status.String(),
		"role":   string(snap.Role),
	})
}

// Restored is closed once the startup restore has finished.
func (a *App) Restored() <-chan struct{} {
	return a.restored
}

func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

func (a *App) Run() error {
	err := a.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	a.stopRestore()

	if err := a.httpServer.Shutdown(ctx); err != nil {
		return err
	}

	select {
	case <-a.restored:
	case <-ctx.Done():
		return ctx.Err()
	}

	return a.infra.Close()
}
