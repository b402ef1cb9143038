// Package app provides the main application structure and lifecycle
// management for the interview pipeline.
package app

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/voxhire/go-interview-client/internal/capture"
	"github.com/voxhire/go-interview-client/internal/config"
	"github.com/voxhire/go-interview-client/internal/events"
	"github.com/voxhire/go-interview-client/internal/infrastructure"
	"github.com/voxhire/go-interview-client/internal/mixbus"
	"github.com/voxhire/go-interview-client/internal/playback"
	"github.com/voxhire/go-interview-client/internal/session"
	"github.com/voxhire/go-interview-client/internal/transport"
	pkginfra "github.com/voxhire/go-interview-client/pkg/infrastructure"
)

// Application represents the assembled interview client with its
// lifecycle.
type Application struct {
	app *fx.App
}

// New creates an Application from the pipeline modules plus whatever the
// embedder provides: at minimum a session.Bootstrapper, a
// device.MediaDevices and the config path, typically also a
// playback.Sink for the speaker and an events.Ingestor.
func New(modules ...fx.Option) *Application {
	options := append(pipelineModules(), modules...)
	options = append(options, fx.Invoke(registerLifecycleHooks))

	return &Application{app: fx.New(options...)}
}

func pipelineModules() []fx.Option {
	return []fx.Option{
		config.Module,
		infrastructure.LoggerModule,

		transport.Module,
		playback.Module,
		capture.Module,
		mixbus.Module,
		events.Module,
		session.Module,

		fx.WithLogger(pkginfra.NewFxLoggerAdapter),
	}
}

// Run starts the application and blocks until it's stopped.
func (a *Application) Run() {
	a.app.Run()
}

// Stop gracefully stops the application.
func (a *Application) Stop(ctx context.Context) error {
	return a.app.Stop(ctx)
}

// registerLifecycleHooks ties the interview lifecycle to the container:
// device preparation and the connect sequence on start, the termination
// sequence on stop.
func registerLifecycleHooks(lc fx.Lifecycle, ctrl *session.Controller, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := ctrl.PrepareDevices(ctx); err != nil {
				return err
			}

			// The connect sequence includes the countdown, so it runs off
			// the start path; failures surface through the health monitor.
			go func() {
				if err := ctrl.Start(context.Background()); err != nil {
					logger.Error("Interview start sequence failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			ctrl.Terminate(ctx)
			return nil
		},
	})
}
