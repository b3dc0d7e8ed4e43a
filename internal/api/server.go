package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/gatekeeper-core/internal/importer"
	"github.com/nerrad567/gatekeeper-core/internal/infrastructure/config"
	"github.com/nerrad567/gatekeeper-core/internal/infrastructure/logging"
	"github.com/nerrad567/gatekeeper-core/internal/infrastructure/metrics"
	"github.com/nerrad567/gatekeeper-core/internal/notify"
	"github.com/nerrad567/gatekeeper-core/internal/student"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// StudentService is the registry service the handlers call.
// *student.Service satisfies this interface.
type StudentService interface {
	Create(ctx context.Context, in student.Student) (*student.Student, error)
	Get(ctx context.Context, id string) (*student.Student, error)
	List(ctx context.Context) ([]student.Student, error)
	Update(ctx context.Context, id string, u student.Update) (*student.Student, error)
	Delete(ctx context.Context, id string) error
}

// ObserverHub registers live-channel connections.
// *notify.Hub satisfies this interface.
type ObserverHub interface {
	Join() *notify.Observer
	Leave(obs *notify.Observer)
	Count() int
}

// Importer loads students from an uploaded workbook.
// *importer.Importer satisfies this interface.
type Importer interface {
	Import(ctx context.Context, r io.Reader) (*importer.Result, error)
}

// Store is the record store as seen by the health and metrics endpoints.
// *database.DB satisfies this interface.
type Store interface {
	HealthCheck(ctx context.Context) error
	Stats() sql.DBStats
	Driver() string
}

// BrokerStatus reports the event mirror's broker connection.
// *mqtt.Client satisfies this interface.
type BrokerStatus interface {
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Logger   *logging.Logger
	Students StudentService
	Hub      ObserverHub
	Importer Importer         // optional: POST /students/import answers 503 without it
	Store    Store            // optional: health reports the store as unknown without it
	Metrics  *metrics.Metrics // optional: no Prometheus endpoint without it
	// MetricsPath is where Prometheus scrapes; defaults to /metrics.
	MetricsPath string
	Broker      BrokerStatus // optional: set when the MQTT event mirror is enabled
	Version     string
}

// Server is the HTTP API server for Gatekeeper Core.
//
// It manages the HTTP listener, routes, middleware and the live channel.
// The server is created with New() and started with Start().
type Server struct {
	cfg          config.APIConfig
	wsCfg        config.WebSocketConfig
	logger       *logging.Logger
	students     StudentService
	hub          ObserverHub
	importer     Importer
	store        Store
	metrics      *metrics.Metrics
	metricsRoute string
	broker       BrokerStatus
	version      string
	startTime    time.Time
	server       *http.Server
	listener     net.Listener
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Students == nil {
		return nil, fmt.Errorf("student service is required")
	}
	if deps.Hub == nil {
		return nil, fmt.Errorf("observer hub is required")
	}

	return &Server{
		cfg:          deps.Config,
		wsCfg:        deps.WS,
		logger:       deps.Logger,
		students:     deps.Students,
		hub:          deps.Hub,
		importer:     deps.Importer,
		store:        deps.Store,
		metrics:      deps.Metrics,
		metricsRoute: deps.MetricsPath,
		broker:       deps.Broker,
		version:      deps.Version,
		startTime:    time.Now(),
	}, nil
}

// Start binds the listener and serves in a background goroutine.
// Binding happens before Start returns, so a port conflict is reported
// here rather than logged later.
func (s *Server) Start(_ context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", ln.Addr().String(),
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ServeTLS(ln, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", ln.Addr().String())
			err = s.server.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete. Live
// channel connections are hijacked and not tracked by Shutdown; they end
// when the hub is closed.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
