// Package service provides read-side access to the company registry: access
// code validation during onboarding, and the company/client enumeration the
// reminder dispatcher fans out over. Companies and clients are created and
// edited by external CRUD flows; this core never writes them.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/automind-ia/automind-saas/platform/go/callable"
	platformlogging "github.com/automind-ia/automind-saas/platform/go/logging"
)

// ErrNotFound is returned when no company matches a lookup.
var ErrNotFound = errors.New("company not found")

// Company is one tenant account.
type Company struct {
	ID         string
	Name       string
	AccessCode string
	CNPJ       *string
	CreatedAt  time.Time
}

// Client is one recipient record under a company. Fields carries the raw
// document data so callers can project dynamically named business fields
// (e.g. a configured due-date field) without this package interpreting them.
type Client struct {
	ID      string
	Name    string
	Phone   string
	Email   string
	Enabled bool
	Fields  map[string]any
}

// Repository abstracts the company registry reads.
type Repository interface {
	FindByAccessCode(ctx context.Context, code string) (Company, error)
	List(ctx context.Context) ([]Company, error)
	ListEnabledClients(ctx context.Context, companyID string) ([]Client, error)
}

// Service provides company registry operations.
type Service struct {
	repo   Repository
	logger *zap.Logger
}

// New constructs a Service with required dependencies.
func New(repo Repository, logger *zap.Logger) *Service {
	if repo == nil {
		panic("companies repo is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Service{repo: repo, logger: logger}
}

// ValidateAccessCode resolves a signup code to the company it belongs to.
// The match is exact and case-sensitive on the unique accessCode field.
func (s *Service) ValidateAccessCode(ctx context.Context, code string) (string, error) {
	if code == "" {
		return "", callable.InvalidArgument("company code is required")
	}

	company, err := s.repo.FindByAccessCode(ctx, code)
	if errors.Is(err, ErrNotFound) {
		s.log(ctx).Warn("access code not found")
		return "", callable.NotFound("company code is invalid or not found")
	}
	if err != nil {
		return "", callable.Internal("failed to validate company code", err)
	}

	s.log(ctx).Info("access code validated", zap.String("company_id", company.ID))
	return company.ID, nil
}

// List returns every company.
func (s *Service) List(ctx context.Context) ([]Company, error) {
	companies, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	return companies, nil
}

// ListEnabledClients returns a company's recipients with enabled == true.
func (s *Service) ListEnabledClients(ctx context.Context, companyID string) ([]Client, error) {
	clients, err := s.repo.ListEnabledClients(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("list enabled clients for %s: %w", companyID, err)
	}
	return clients, nil
}

func (s *Service) log(ctx context.Context) *zap.Logger {
	if logger, ok := platformlogging.FromContext(ctx); ok {
		return logger
	}
	return s.logger
}
