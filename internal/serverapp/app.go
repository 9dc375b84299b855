// Package serverapp wires the config service: store refresh, the optional
// indexer query adapter, HTTP routes and observability, with an ordered
// lifecycle.
package serverapp

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/graphql-go/graphql"

	"storecfg/internal/config"
	"storecfg/internal/configrefresh"
	"storecfg/internal/logging"
	"storecfg/internal/observability"
	"storecfg/internal/queryadapter"
)

// App owns runtime resources for the config service lifecycle.
type App struct {
	cfg    *config.Config
	logger *logging.Logger

	loggerProvider *observability.LoggerProvider

	meterProvider  *observability.MeterProvider
	resolveMetrics *observability.ResolveMetrics
	httpMetrics    *observability.HTTPMetrics
	tracerProvider *observability.TracerProvider

	indexer *queryadapter.DB
	adapter queryadapter.QueryAdapter

	manager       *configrefresh.Manager
	refreshCancel context.CancelFunc

	schema  graphql.Schema
	mux     *http.ServeMux
	handler http.Handler

	serverAddr string
	srv        *http.Server
	listener   net.Listener

	cleanup cleanupStack

	stateMu      sync.Mutex
	initialized  bool
	started      bool
	serverErrors chan error

	shutdownOnce sync.Once
}

// New creates an App lifecycle wrapper.
func New(cfg *config.Config, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if strings.TrimSpace(cfg.Input.Path) == "" {
		return nil, fmt.Errorf("an input store document is required")
	}
	return &App{cfg: cfg, logger: logger}, nil
}

// AttachLoggerProvider registers an optional logger provider for shutdown cleanup.
func (a *App) AttachLoggerProvider(provider *observability.LoggerProvider) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.loggerProvider = provider
}

// Handler returns the fully wrapped HTTP handler. It is nil before Init.
func (a *App) Handler() http.Handler {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.handler
}

// Addr returns the bound listen address once the server has started.
func (a *App) Addr() string {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	if a.listener != nil {
		return a.listener.Addr().String()
	}
	return a.serverAddr
}
