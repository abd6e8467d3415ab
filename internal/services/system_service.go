package services

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/readify/api/internal/domain"
	"github.com/readify/api/internal/repositories"
)

// BuildInfo captures runtime metadata exposed via health endpoints.
type BuildInfo struct {
	Version     string
	CommitSHA   string
	Environment string
	StartedAt   time.Time
}

// SystemServiceDeps bundles collaborators required to construct a system service.
type SystemServiceDeps struct {
	HealthRepository repositories.HealthRepository
	Clock            func() time.Time
	Build            BuildInfo
	// Critical names the dependency checks without which no request can be served. A failing
	// critical check turns the whole report into an error.
	Critical []string
}

type systemService struct {
	healthRepo repositories.HealthRepository
	now        func() time.Time
	build      BuildInfo
	critical   map[string]struct{}
}

var _ SystemService = (*systemService)(nil)

// NewSystemService assembles the service behind the readiness endpoint.
func NewSystemService(deps SystemServiceDeps) (SystemService, error) {
	if deps.HealthRepository == nil {
		return nil, errors.New("system service: health repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	svc := &systemService{
		healthRepo: deps.HealthRepository,
		now:        func() time.Time { return clock().UTC() },
		build:      deps.Build,
		critical:   make(map[string]struct{}, len(deps.Critical)),
	}
	if svc.build.StartedAt.IsZero() {
		svc.build.StartedAt = svc.now()
	}
	for _, name := range deps.Critical {
		if name = strings.TrimSpace(name); name != "" {
			svc.critical[name] = struct{}{}
		}
	}
	return svc, nil
}

func (s *systemService) HealthReport(ctx context.Context) (SystemHealthReport, error) {
	report, err := s.healthRepo.Collect(ctx)
	if err != nil {
		return SystemHealthReport{}, err
	}

	now := s.now()
	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = now
	}
	if report.Uptime <= 0 {
		report.Uptime = now.Sub(s.build.StartedAt)
	}
	if report.Version == "" {
		report.Version = s.build.Version
	}
	if report.CommitSHA == "" {
		report.CommitSHA = s.build.CommitSHA
	}
	if report.Environment == "" {
		report.Environment = s.build.Environment
	}
	if report.Checks == nil {
		report.Checks = map[string]domain.SystemHealthCheck{}
	}

	derived := domain.HealthStatusOK
	for name, check := range report.Checks {
		if check.Status == "" || check.Status == domain.HealthStatusOK {
			continue
		}
		if _, ok := s.critical[name]; ok || check.Status == domain.HealthStatusError {
			derived = domain.HealthStatusError
			break
		}
		derived = domain.HealthStatusDegraded
	}
	status := report.Status
	if status == "" || healthRank(derived) > healthRank(status) {
		status = derived
	}
	report.Status = status
	return report, nil
}

func healthRank(status domain.SystemHealthStatus) int {
	switch status {
	case domain.HealthStatusError:
		return 2
	case domain.HealthStatusDegraded:
		return 1
	default:
		return 0
	}
}
