package repo

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/automind-ia/automind-saas/domains/companies/be/service"
)

const (
	collectionCompanies = "companies"
	collectionClients   = "clients"
)

// FirestoreRepository reads the company registry from the top-level companies
// collection and its clients subcollections.
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

type companyDoc struct {
	Name       string    `firestore:"name"`
	AccessCode string    `firestore:"accessCode"`
	CNPJ       *string   `firestore:"cnpj"`
	CreatedAt  time.Time `firestore:"createdAt"`
}

func toCompany(snap *firestore.DocumentSnapshot) (service.Company, error) {
	var doc companyDoc
	if err := snap.DataTo(&doc); err != nil {
		return service.Company{}, fmt.Errorf("decode company %s: %w", snap.Ref.ID, err)
	}
	return service.Company{
		ID:         snap.Ref.ID,
		Name:       doc.Name,
		AccessCode: doc.AccessCode,
		CNPJ:       doc.CNPJ,
		CreatedAt:  doc.CreatedAt,
	}, nil
}

// FindByAccessCode looks up the single company whose accessCode matches.
func (r *FirestoreRepository) FindByAccessCode(ctx context.Context, code string) (service.Company, error) {
	iter := r.client.Collection(collectionCompanies).
		Where("accessCode", "==", code).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if err == iterator.Done {
		return service.Company{}, service.ErrNotFound
	}
	if err != nil {
		return service.Company{}, fmt.Errorf("query companies by access code: %w", err)
	}
	return toCompany(snap)
}

// List returns every company document.
func (r *FirestoreRepository) List(ctx context.Context) ([]service.Company, error) {
	iter := r.client.Collection(collectionCompanies).Documents(ctx)
	defer iter.Stop()

	var companies []service.Company
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate companies: %w", err)
		}
		company, err := toCompany(snap)
		if err != nil {
			return nil, err
		}
		companies = append(companies, company)
	}
	return companies, nil
}

// ListEnabledClients returns a company's client records with enabled == true,
// keeping the raw document data for dynamic field projection.
func (r *FirestoreRepository) ListEnabledClients(ctx context.Context, companyID string) ([]service.Client, error) {
	iter := r.client.Collection(collectionCompanies).Doc(companyID).
		Collection(collectionClients).
		Where("enabled", "==", true).
		Documents(ctx)
	defer iter.Stop()

	var clients []service.Client
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate clients of %s: %w", companyID, err)
		}

		data := snap.Data()
		client := service.Client{ID: snap.Ref.ID, Enabled: true, Fields: data}
		if v, ok := data["name"].(string); ok {
			client.Name = v
		}
		if v, ok := data["phone"].(string); ok {
			client.Phone = v
		}
		if v, ok := data["email"].(string); ok {
			client.Email = v
		}
		clients = append(clients, client)
	}
	return clients, nil
}

// Ensure interface compliance.
var _ service.Repository = (*FirestoreRepository)(nil)
