package dispatcher_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	automationsrepo "github.com/automind-ia/automind-saas/domains/automations/be/repo"
	companiesrepo "github.com/automind-ia/automind-saas/domains/companies/be/repo"
	companiesservice "github.com/automind-ia/automind-saas/domains/companies/be/service"
	"github.com/automind-ia/automind-saas/domains/reminders/be/dispatcher"
)

const instanceID = "payment-reminder"

type fixture struct {
	companies   *companiesrepo.MemoryRepository
	automations *automationsrepo.MemoryRepository
}

func newFixture() *fixture {
	return &fixture{
		companies:   companiesrepo.NewMemoryRepository(),
		automations: automationsrepo.NewMemoryRepository(),
	}
}

// seedReadyCompany registers a company with an enabled reminder instance,
// a valid config, and one enabled client.
func (f *fixture) seedReadyCompany(id, name string) {
	f.companies.SeedCompany(companiesservice.Company{ID: id, Name: name, AccessCode: id + "-code"})
	f.automations.SeedInstance(id, instanceID, map[string]any{
		"automationId": "MGGct7RZTCgk2eWwDpb4",
		"enabled":      true,
		"config":       map[string]any{"clientDueDateField": "vencimento"},
	})
	f.companies.SeedClient(id, companiesservice.Client{
		ID:      id + "-c1",
		Name:    "Ana",
		Phone:   "+5511999990000",
		Email:   "ana@example.com",
		Enabled: true,
		Fields:  map[string]any{"vencimento": "2024-03-10"},
	})
}

func (f *fixture) dispatcher(t *testing.T, webhookURL string) *dispatcher.Dispatcher {
	t.Helper()
	return dispatcher.New(
		dispatcher.Config{WebhookURL: webhookURL, InstanceID: instanceID},
		companiesservice.New(f.companies, zap.NewNop()),
		f.automations,
		&http.Client{Timeout: 2 * time.Second},
		zap.NewNop(),
	)
}

func outcomeFor(t *testing.T, outcomes []dispatcher.Outcome, companyID string) dispatcher.Outcome {
	t.Helper()
	for _, o := range outcomes {
		if o.CompanyID == companyID {
			return o
		}
	}
	t.Fatalf("no outcome for company %s", companyID)
	return dispatcher.Outcome{}
}

func TestRunDispatchesEveryReadyCompany(t *testing.T) {
	f := newFixture()
	f.seedReadyCompany("acme", "Acme Ltda")
	f.seedReadyCompany("globex", "Globex SA")
	f.seedReadyCompany("initech", "Initech ME")

	var mu sync.Mutex
	seen := map[string]int{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload dispatcher.Payload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		mu.Lock()
		seen[payload.CompanyID]++
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	outcomes, err := f.dispatcher(t, server.URL).Run(context.Background(), time.Now())
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	for _, id := range []string{"acme", "globex", "initech"} {
		require.Equal(t, dispatcher.OutcomeDispatched, outcomeFor(t, outcomes, id).Status)
		require.Equal(t, 1, seen[id])
	}
}

func TestFailingWebhookDoesNotBlockOtherCompanies(t *testing.T) {
	f := newFixture()
	f.seedReadyCompany("acme", "Acme Ltda")
	f.seedReadyCompany("bad", "Bad Co")
	f.seedReadyCompany("globex", "Globex SA")

	var mu sync.Mutex
	attempted := map[string]bool{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload dispatcher.Payload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		mu.Lock()
		attempted[payload.CompanyID] = true
		mu.Unlock()
		if payload.CompanyID == "bad" {
			http.Error(w, "workflow not active", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	outcomes, err := f.dispatcher(t, server.URL).Run(context.Background(), time.Now())
	require.NoError(t, err)

	require.Equal(t, dispatcher.OutcomeFailed, outcomeFor(t, outcomes, "bad").Status)
	require.Equal(t, dispatcher.OutcomeDispatched, outcomeFor(t, outcomes, "acme").Status)
	require.Equal(t, dispatcher.OutcomeDispatched, outcomeFor(t, outcomes, "globex").Status)
	require.Len(t, attempted, 3)
}

func TestTransportFailureIsIsolatedToTheRun(t *testing.T) {
	f := newFixture()
	f.seedReadyCompany("acme", "Acme Ltda")

	// A server that is already gone: every call fails at the network level.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	outcomes, err := f.dispatcher(t, url).Run(context.Background(), time.Now())
	require.NoError(t, err)
	require.Equal(t, dispatcher.OutcomeFailed, outcomeFor(t, outcomes, "acme").Status)
}

func TestSkipRules(t *testing.T) {
	f := newFixture()

	// No reminder instance at all.
	f.companies.SeedCompany(companiesservice.Company{ID: "none", Name: "No Instance"})

	// Instance exists but is disabled.
	f.companies.SeedCompany(companiesservice.Company{ID: "off", Name: "Disabled"})
	f.automations.SeedInstance("off", instanceID, map[string]any{
		"enabled": false,
		"config":  map[string]any{"clientDueDateField": "vencimento"},
	})

	// Enabled but the config lacks the due-date field name.
	f.companies.SeedCompany(companiesservice.Company{ID: "misconfig", Name: "Misconfigured"})
	f.automations.SeedInstance("misconfig", instanceID, map[string]any{
		"enabled": true,
		"config":  map[string]any{"sheetId": "abc"},
	})

	// Fully configured but no enabled clients.
	f.companies.SeedCompany(companiesservice.Company{ID: "empty", Name: "No Clients"})
	f.automations.SeedInstance("empty", instanceID, map[string]any{
		"enabled": true,
		"config":  map[string]any{"clientDueDateField": "vencimento"},
	})
	f.companies.SeedClient("empty", companiesservice.Client{ID: "c1", Enabled: false})

	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	outcomes, err := f.dispatcher(t, server.URL).Run(context.Background(), time.Now())
	require.NoError(t, err)
	require.Len(t, outcomes, 4)
	require.Zero(t, calls)

	require.Equal(t, "automation not configured", outcomeFor(t, outcomes, "none").Reason)
	require.Equal(t, "automation disabled", outcomeFor(t, outcomes, "off").Reason)
	require.Equal(t, "missing clientDueDateField", outcomeFor(t, outcomes, "misconfig").Reason)
	require.Equal(t, "no enabled clients", outcomeFor(t, outcomes, "empty").Reason)
	for _, o := range outcomes {
		require.Equal(t, dispatcher.OutcomeSkipped, o.Status)
	}
}

func TestPayloadProjectsEnabledClients(t *testing.T) {
	f := newFixture()
	f.companies.SeedCompany(companiesservice.Company{ID: "acme", Name: "Acme Ltda"})
	f.automations.SeedInstance("acme", instanceID, map[string]any{
		"automationId": "MGGct7RZTCgk2eWwDpb4",
		"enabled":      true,
		"config": map[string]any{
			"clientDueDateField": "vencimento",
			"messageTemplate":    "Olá {{name}}",
		},
	})
	for _, c := range []struct{ id, name, phone, email, due string }{
		{"c1", "Ana", "+5511999990001", "ana@example.com", "2024-03-05"},
		{"c2", "Bruno", "+5511999990002", "bruno@example.com", "2024-03-10"},
		{"c3", "Carla", "+5511999990003", "carla@example.com", "2024-03-15"},
	} {
		f.companies.SeedClient("acme", companiesservice.Client{
			ID: c.id, Name: c.name, Phone: c.phone, Email: c.email, Enabled: true,
			Fields: map[string]any{"vencimento": c.due},
		})
	}

	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		body, err = io.ReadAll(r.Body)
		require.NoError(t, err)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	invokedAt := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	outcomes, err := f.dispatcher(t, server.URL).Run(context.Background(), invokedAt)
	require.NoError(t, err)
	require.Equal(t, 3, outcomeFor(t, outcomes, "acme").ClientCount)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(body, &payload))
	require.Equal(t, "schedule", payload["triggeringMechanism"])
	require.Equal(t, "daily-payment-reminders", payload["invokedByJob"])
	require.Equal(t, "acme", payload["companyId"])
	require.Equal(t, "Acme Ltda", payload["companyName"])
	require.Equal(t, instanceID, payload["instanceId"])
	require.Equal(t, "MGGct7RZTCgk2eWwDpb4", payload["automationId"])
	require.Equal(t, "Olá {{name}}", payload["config"].(map[string]any)["messageTemplate"])

	clients := payload["clients"].([]any)
	require.Len(t, clients, 3)
	first := clients[0].(map[string]any)
	require.Equal(t, "c1", first["id"])
	require.Equal(t, "Ana", first["name"])
	require.Equal(t, "+5511999990001", first["phone"])
	require.Equal(t, "ana@example.com", first["email"])
	require.Equal(t, "2024-03-05", first["vencimento"])
}

type failingDirectory struct {
	err error
}

func (d failingDirectory) List(context.Context) ([]companiesservice.Company, error) {
	return nil, d.err
}
func (d failingDirectory) ListEnabledClients(context.Context, string) ([]companiesservice.Client, error) {
	return nil, d.err
}

func TestEnumerationFailureIsFatalToTheRun(t *testing.T) {
	cause := errors.New("firestore unavailable")
	d := dispatcher.New(
		dispatcher.Config{WebhookURL: "http://localhost:1", InstanceID: instanceID},
		failingDirectory{err: cause},
		automationsrepo.NewMemoryRepository(),
		nil,
		zap.NewNop(),
	)

	_, err := d.Run(context.Background(), time.Now())
	require.ErrorIs(t, err, cause)
}

func TestNoCompaniesIsANoop(t *testing.T) {
	f := newFixture()
	outcomes, err := f.dispatcher(t, "http://localhost:1").Run(context.Background(), time.Now())
	require.NoError(t, err)
	require.Empty(t, outcomes)
}
