package repo

import (
	"context"
	"sort"
	"sync"

	"github.com/automind-ia/automind-saas/domains/companies/be/service"
)

// MemoryRepository is a simple in-memory implementation suitable for tests
// and early development.
type MemoryRepository struct {
	mu        sync.RWMutex
	companies map[string]service.Company
	clients   map[string][]service.Client
}

// NewMemoryRepository constructs a MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		companies: make(map[string]service.Company),
		clients:   make(map[string][]service.Client),
	}
}

// SeedCompany inserts or replaces a company.
func (r *MemoryRepository) SeedCompany(company service.Company) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.companies[company.ID] = company
}

// SeedClient appends a client record under a company.
func (r *MemoryRepository) SeedClient(companyID string, client service.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[companyID] = append(r.clients[companyID], client)
}

func (r *MemoryRepository) FindByAccessCode(ctx context.Context, code string) (service.Company, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, company := range r.companies {
		if company.AccessCode == code {
			return company, nil
		}
	}
	return service.Company{}, service.ErrNotFound
}

func (r *MemoryRepository) List(ctx context.Context) ([]service.Company, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	companies := make([]service.Company, 0, len(r.companies))
	for _, company := range r.companies {
		companies = append(companies, company)
	}
	sort.Slice(companies, func(i, j int) bool { return companies[i].ID < companies[j].ID })
	return companies, nil
}

func (r *MemoryRepository) ListEnabledClients(ctx context.Context, companyID string) ([]service.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var enabled []service.Client
	for _, client := range r.clients[companyID] {
		if client.Enabled {
			enabled = append(enabled, client)
		}
	}
	return enabled, nil
}

// Ensure interface compliance.
var _ service.Repository = (*MemoryRepository)(nil)
