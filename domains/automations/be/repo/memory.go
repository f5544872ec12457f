package repo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/automind-ia/automind-saas/domains/automations/be/service"
	"github.com/automind-ia/automind-saas/platform/go/docstore"
)

// MemoryRepository is a simple in-memory implementation suitable for tests
// and early development. It mirrors the document semantics of the Firestore
// repository: blind partial updates that fail on missing records.
type MemoryRepository struct {
	mu        sync.RWMutex
	instances map[string]map[string]any
	clients   map[string]map[string]any
}

// NewMemoryRepository constructs a MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		instances: make(map[string]map[string]any),
		clients:   make(map[string]map[string]any),
	}
}

func recordKey(companyID, recordID string) string {
	return companyID + "/" + recordID
}

// SeedInstance inserts or replaces an instance document.
func (r *MemoryRepository) SeedInstance(companyID, instanceID string, doc map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances[recordKey(companyID, instanceID)] = cloneDoc(doc)
}

// SeedClient inserts or replaces a client document.
func (r *MemoryRepository) SeedClient(companyID, clientID string, doc map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[recordKey(companyID, clientID)] = cloneDoc(doc)
}

// InstanceDoc returns a copy of the stored instance document.
func (r *MemoryRepository) InstanceDoc(companyID, instanceID string) (map[string]any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.instances[recordKey(companyID, instanceID)]
	if !ok {
		return nil, false
	}
	return cloneDoc(doc), true
}

// ClientDoc returns a copy of the stored client document.
func (r *MemoryRepository) ClientDoc(companyID, clientID string) (map[string]any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.clients[recordKey(companyID, clientID)]
	if !ok {
		return nil, false
	}
	return cloneDoc(doc), true
}

func (r *MemoryRepository) GetInstance(ctx context.Context, companyID, instanceID string) (service.Instance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, ok := r.instances[recordKey(companyID, instanceID)]
	if !ok {
		return service.Instance{}, service.ErrInstanceNotFound
	}

	inst := service.Instance{ID: instanceID}
	if v, ok := doc["automationId"].(string); ok {
		inst.AutomationID = v
	}
	if v, ok := doc["enabled"].(bool); ok {
		inst.Enabled = v
	}
	if v, ok := doc["config"].(map[string]any); ok {
		inst.Config = cloneDoc(v)
	}
	if v, ok := doc["status"].(string); ok {
		inst.Status = v
	}
	if v, ok := doc["lastRun"].(time.Time); ok {
		inst.LastRun = &v
	}
	return inst, nil
}

func (r *MemoryRepository) UpdateInstance(ctx context.Context, companyID, instanceID string, updates []docstore.Update) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.instances[recordKey(companyID, instanceID)]
	if !ok {
		return fmt.Errorf("update instance %s/%s: %w", companyID, instanceID, service.ErrInstanceNotFound)
	}
	docstore.ApplyToDoc(doc, updates, time.Now().UTC())
	return nil
}

func (r *MemoryRepository) UpdateClient(ctx context.Context, companyID, clientID string, updates []docstore.Update) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.clients[recordKey(companyID, clientID)]
	if !ok {
		return fmt.Errorf("update client %s/%s: no such record", companyID, clientID)
	}
	docstore.ApplyToDoc(doc, updates, time.Now().UTC())
	return nil
}

func cloneDoc(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

// Ensure interface compliance.
var _ service.Repository = (*MemoryRepository)(nil)
