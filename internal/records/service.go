// Package records serves the record registry over HTTP. Each request is
// authenticated by a bearer JWT whose subject is the caller identity, and
// registry operations are serialized against the configured ledger.
package records

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/medrex/record-registry/internal/registry"
	"github.com/medrex/record-registry/pkg/config"
	"github.com/medrex/record-registry/pkg/interfaces"
	"github.com/medrex/record-registry/pkg/ledger"
	"github.com/medrex/record-registry/pkg/logger"
	"github.com/medrex/record-registry/pkg/monitoring"
)

const serviceName = "record-registry"

// Service implements the registry HTTP API
type Service struct {
	config         *config.Config
	router         *mux.Router
	handler        http.Handler
	server         *http.Server
	registry       interfaces.RecordRegistry
	store          ledger.Store
	tokenValidator interfaces.TokenValidator
	rateLimiter    interfaces.RateLimiter
	metrics        *monitoring.MetricsCollector
	tracing        *monitoring.TracingManager
	monitoring     *monitoring.MonitoringMiddleware
	health         *monitoring.HealthManager
	logger         *logger.Logger

	// mu serializes registry operations: writers exclusive, readers shared
	mu sync.RWMutex
}

// NewService creates the registry HTTP service over store
func NewService(cfg *config.Config, store ledger.Store, log *logger.Logger) (*Service, error) {
	tracing, err := monitoring.NewTracingManager(&cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	metrics := monitoring.NewMetricsCollector(serviceName)

	s := &Service{
		config:   cfg,
		router:   mux.NewRouter().UseEncodedPath(),
		registry: registry.New(log, registry.WithObserver(metrics)),
		store:    store,
		tokenValidator: NewTokenValidator(
			cfg.JWT.SecretKey,
			cfg.JWT.Issuer,
			cfg.JWT.Audience,
			time.Duration(cfg.JWT.AccessTokenTTL)*time.Second,
		),
		metrics:    metrics,
		tracing:    tracing,
		monitoring: monitoring.NewMonitoringMiddleware(metrics, tracing, log),
		health:     monitoring.NewHealthManager(serviceName, cfg.Tracing.ServiceVersion),
		logger:     log,
	}

	if cfg.RateLimit.Enabled {
		s.rateLimiter = NewRateLimiter(cfg.RateLimit.RequestsPerMin, cfg.RateLimit.BurstSize, time.Minute)
	}

	s.health.SetTimeout(5 * time.Second)
	s.health.RegisterChecker("ledger", monitoring.NewLedgerHealthChecker(cfg.Ledger.Backend, store))
	s.health.RegisterChecker("registry", monitoring.NewCustomHealthChecker(s.checkRegistry))

	s.setupMiddleware()
	s.setupRoutes()
	s.handler = s.corsMiddleware(s.router)

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      s.handler,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	return s, nil
}

// Handler returns the service's HTTP handler
func (s *Service) Handler() http.Handler {
	return s.handler
}

// Start starts the HTTP server and blocks until it stops
func (s *Service) Start(ctx context.Context) error {
	if limiter, ok := s.rateLimiter.(*RateLimiter); ok && s.config.RateLimit.CleanupInterval > 0 {
		limiter.StartCleanup(ctx, time.Duration(s.config.RateLimit.CleanupInterval)*time.Second)
	}

	s.logger.WithFields(map[string]interface{}{
		"addr":   s.server.Addr,
		"ledger": s.config.Ledger.Backend,
	}).Info("Starting record registry service")

	var err error
	if s.config.Server.TLSEnabled {
		err = s.server.ListenAndServeTLS(s.config.Server.CertFile, s.config.Server.KeyFile)
	} else {
		err = s.server.ListenAndServe()
	}
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop gracefully stops the server and flushes traces
func (s *Service) Stop(ctx context.Context) error {
	s.logger.Info("Stopping record registry service")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	if err := s.tracing.Shutdown(ctx); err != nil {
		s.logger.WithError(err).Warn("Failed to flush traces")
	}
	return nil
}

// checkRegistry confirms the registry counters are readable
func (s *Service) checkRegistry(ctx context.Context) monitoring.HealthCheck {
	s.mu.RLock()
	defer s.mu.RUnlock()

	patients, err := s.registry.CountPatients(s.store)
	if err != nil {
		return monitoring.HealthCheck{Status: monitoring.HealthStatusUnhealthy, Message: err.Error()}
	}
	doctors, err := s.registry.CountDoctors(s.store)
	if err != nil {
		return monitoring.HealthCheck{Status: monitoring.HealthStatusUnhealthy, Message: err.Error()}
	}

	return monitoring.HealthCheck{
		Status:  monitoring.HealthStatusHealthy,
		Message: "Registry readable",
		Details: map[string]interface{}{
			"patients": patients,
			"doctors":  doctors,
		},
	}
}

// update runs a mutating registry operation exclusively
func (s *Service) update(r *http.Request, operation string, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.monitoring.TraceOperation(r.Context(), operation, fn)
}

// view runs a read-only registry operation
func (s *Service) view(r *http.Request, operation string, fn func() error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.monitoring.TraceOperation(r.Context(), operation, fn)
}

// setupRoutes sets up the routing
func (s *Service) setupRoutes() {
	s.router.HandleFunc(s.config.Monitoring.HealthPath, s.health.HTTPHandler()).Methods("GET")
	if s.config.Monitoring.Enabled {
		s.router.Handle(s.config.Monitoring.MetricsPath, s.metrics.Handler()).Methods("GET")
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.authMiddleware)
	api.Use(s.rateLimitMiddleware)

	// Patients
	api.HandleFunc("/patients", s.handleRegisterPatient).Methods("POST")
	api.HandleFunc("/patients", s.handleListPatients).Methods("GET")
	api.HandleFunc("/patients/count", s.handleCountPatients).Methods("GET")
	api.HandleFunc("/patients/me", s.handleEditPatient).Methods("PUT")
	api.HandleFunc("/patients/me/files", s.handleUploadPatientFile).Methods("POST")
	api.HandleFunc("/patients/{id}", s.handleGetPatient).Methods("GET")
	api.HandleFunc("/patients/{id}/files", s.handleUploadPatientFileByDoctor).Methods("POST")
	api.HandleFunc("/patients/{id}/files", s.handleListPatientFiles).Methods("GET")
	api.HandleFunc("/patients/{id}/appointments", s.handleListPatientAppointments).Methods("GET")

	// Doctors
	api.HandleFunc("/doctors", s.handleRegisterDoctor).Methods("POST")
	api.HandleFunc("/doctors", s.handleListDoctors).Methods("GET")
	api.HandleFunc("/doctors/count", s.handleCountDoctors).Methods("GET")
	api.HandleFunc("/doctors/{id}", s.handleEditDoctor).Methods("PUT")
	api.HandleFunc("/doctors/{id}", s.handleGetDoctor).Methods("GET")

	// Permissions
	api.HandleFunc("/permissions/{doctorId}", s.handleGrantPermission).Methods("POST")
	api.HandleFunc("/permissions/{doctorId}", s.handleRevokePermission).Methods("DELETE")
	api.HandleFunc("/permissions/{patientId}/{doctorId}", s.handleIsPermitted).Methods("GET")

	// Appointments
	api.HandleFunc("/appointments", s.handleCreateAppointment).Methods("POST")
	api.HandleFunc("/appointments", s.handleListDoctorAppointments).Methods("GET")
	api.HandleFunc("/appointments/{id}", s.handleGetAppointment).Methods("GET")
	api.HandleFunc("/appointments/{id}/files", s.handleAttachAppointmentFile).Methods("POST")
	api.HandleFunc("/appointments/{id}/files", s.handleListAppointmentFiles).Methods("GET")
}

// setupMiddleware sets up middleware shared by every matched route. CORS
// wraps the router itself so preflight requests never reach route matching.
func (s *Service) setupMiddleware() {
	s.router.Use(s.securityHeadersMiddleware)
	s.router.Use(s.monitoring.HTTPMiddleware)
}
