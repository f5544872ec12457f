package repo

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/automind-ia/automind-saas/domains/automations/be/service"
	"github.com/automind-ia/automind-saas/platform/go/docstore"
)

const (
	collectionCompanies = "companies"
	collectionInstances = "company_automations"
	collectionClients   = "clients"
)

// FirestoreRepository stores instances and client records in the hierarchical
// company namespace: companies/{id}/company_automations/{id} and
// companies/{id}/clients/{id}.
type FirestoreRepository struct {
	client *firestore.Client
}

// NewFirestoreRepository constructs a FirestoreRepository.
func NewFirestoreRepository(client *firestore.Client) *FirestoreRepository {
	if client == nil {
		panic("firestore client is required")
	}
	return &FirestoreRepository{client: client}
}

type instanceDoc struct {
	AutomationID string         `firestore:"automationId"`
	Enabled      bool           `firestore:"enabled"`
	Config       map[string]any `firestore:"config"`
	Status       string         `firestore:"status"`
	LastRun      *time.Time     `firestore:"lastRun"`
}

func (r *FirestoreRepository) instanceRef(companyID, instanceID string) *firestore.DocumentRef {
	return r.client.Collection(collectionCompanies).Doc(companyID).
		Collection(collectionInstances).Doc(instanceID)
}

func (r *FirestoreRepository) clientRef(companyID, clientID string) *firestore.DocumentRef {
	return r.client.Collection(collectionCompanies).Doc(companyID).
		Collection(collectionClients).Doc(clientID)
}

// GetInstance reads one automation instance.
func (r *FirestoreRepository) GetInstance(ctx context.Context, companyID, instanceID string) (service.Instance, error) {
	snap, err := r.instanceRef(companyID, instanceID).Get(ctx)
	if err != nil {
		if snap != nil && !snap.Exists() {
			return service.Instance{}, service.ErrInstanceNotFound
		}
		return service.Instance{}, fmt.Errorf("get instance %s/%s: %w", companyID, instanceID, err)
	}

	var doc instanceDoc
	if err := snap.DataTo(&doc); err != nil {
		return service.Instance{}, fmt.Errorf("decode instance %s/%s: %w", companyID, instanceID, err)
	}

	return service.Instance{
		ID:           snap.Ref.ID,
		AutomationID: doc.AutomationID,
		Enabled:      doc.Enabled,
		Config:       doc.Config,
		Status:       doc.Status,
		LastRun:      doc.LastRun,
	}, nil
}

// UpdateInstance applies a partial write to one instance record. The write
// fails when the record does not exist; instances are created by the
// enablement flow, never here.
func (r *FirestoreRepository) UpdateInstance(ctx context.Context, companyID, instanceID string, updates []docstore.Update) error {
	if _, err := r.instanceRef(companyID, instanceID).Update(ctx, docstore.ToFirestore(updates)); err != nil {
		return fmt.Errorf("update instance %s/%s: %w", companyID, instanceID, err)
	}
	return nil
}

// UpdateClient applies a partial write to one client record.
func (r *FirestoreRepository) UpdateClient(ctx context.Context, companyID, clientID string, updates []docstore.Update) error {
	if _, err := r.clientRef(companyID, clientID).Update(ctx, docstore.ToFirestore(updates)); err != nil {
		return fmt.Errorf("update client %s/%s: %w", companyID, clientID, err)
	}
	return nil
}

// Ensure interface compliance.
var _ service.Repository = (*FirestoreRepository)(nil)
