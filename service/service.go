package service

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-outcome/metrics"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
)

// Config says where the side endpoints of an aggregator listen.
type Config struct {
	HealthzAddr string
	HealthzPort int
	Metrics     opmetrics.CLIConfig
}

func (c Config) healthzEnabled() bool {
	return c.HealthzPort > 0
}

func (c Config) HealthzEndpoint() string {
	return net.JoinHostPort(c.HealthzAddr, strconv.Itoa(c.HealthzPort))
}

func (c Config) MetricsEndpoint() string {
	return net.JoinHostPort(c.Metrics.ListenAddr, strconv.Itoa(c.Metrics.ListenPort))
}

// Service serves the health and metrics endpoints of a running aggregator.
type Service struct {
	cfg     Config
	log     log.Logger
	Healthz *HealthzServer
	Metrics *MetricsServer
}

// New builds a service whose health endpoint reports the state of checker.
// A nil logger falls back to the root logger.
func New(cfg Config, checker HealthChecker, logger log.Logger) *Service {
	if logger == nil {
		logger = log.Root()
	}
	return &Service{
		cfg:     cfg,
		log:     logger,
		Healthz: &HealthzServer{checker: checker, log: logger},
		Metrics: &MetricsServer{},
	}
}

func (s *Service) Start(ctx context.Context) {
	s.log.Info("service starting")

	if s.cfg.healthzEnabled() {
		go func() {
			addr := s.cfg.HealthzEndpoint()
			s.log.Info("starting healthz server", "addr", addr)
			if err := s.Healthz.Start(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log.Error("error starting healthz server", "err", err)
				metrics.RecordErrorDetails("healthz", err)
			}
		}()
	}

	if s.cfg.Metrics.Enabled {
		go func() {
			addr := s.cfg.MetricsEndpoint()
			s.log.Info("starting metrics server", "addr", addr)
			if err := s.Metrics.Start(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log.Error("error starting metrics server", "err", err)
				metrics.RecordErrorDetails("metrics_server", err)
			}
		}()
	}
}

func (s *Service) Shutdown() {
	if err := s.Healthz.Shutdown(); err != nil {
		s.log.Warn("healthz shutdown failed", "err", err)
	}
	if err := s.Metrics.Shutdown(); err != nil {
		s.log.Warn("metrics shutdown failed", "err", err)
	}
	s.log.Info("service stopped")
}
