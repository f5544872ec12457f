// Package dispatcher implements the scheduled payment-reminder fan-out: once
// per day it walks every company, decides whether its reminder automation
// should fire, and hands the work to the external workflow engine via a
// webhook call. Each company is an independent unit of work; one company's
// bad configuration or failing webhook never blocks the others.
package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	automationsservice "github.com/automind-ia/automind-saas/domains/automations/be/service"
	companiesservice "github.com/automind-ia/automind-saas/domains/companies/be/service"
)

// Config carries the dispatcher's fixed settings, resolved once at process
// start and injected here.
type Config struct {
	// WebhookURL is the workflow engine's inbound webhook for this automation.
	WebhookURL string
	// InstanceID is the well-known id of the payment-reminder instance under
	// each company.
	InstanceID string
	// JobName identifies the scheduled job in payloads and logs.
	JobName string
	// DueDateConfigKey names the instance config entry holding the client
	// field to read due dates from.
	DueDateConfigKey string
	// MaxConcurrent bounds the parallel per-company dispatches.
	MaxConcurrent int
}

// CompanyDirectory is the read side of the company registry.
type CompanyDirectory interface {
	List(ctx context.Context) ([]companiesservice.Company, error)
	ListEnabledClients(ctx context.Context, companyID string) ([]companiesservice.Client, error)
}

// InstanceSource resolves a company's automation instance.
type InstanceSource interface {
	GetInstance(ctx context.Context, companyID, instanceID string) (automationsservice.Instance, error)
}

// OutcomeStatus classifies what happened to one company during a run.
type OutcomeStatus string

const (
	OutcomeDispatched OutcomeStatus = "dispatched"
	OutcomeSkipped    OutcomeStatus = "skipped"
	OutcomeFailed     OutcomeStatus = "failed"
)

// Outcome is the structured per-company result of a run.
type Outcome struct {
	CompanyID   string
	Status      OutcomeStatus
	Reason      string
	ClientCount int
}

// Dispatcher fans the daily reminder trigger out over all companies.
type Dispatcher struct {
	cfg        Config
	companies  CompanyDirectory
	instances  InstanceSource
	httpClient *http.Client
	logger     *zap.Logger
}

// New constructs a Dispatcher. A nil httpClient gets a default with a 30s
// timeout; that timeout is the only per-company time bound.
func New(cfg Config, companies CompanyDirectory, instances InstanceSource, httpClient *http.Client, logger *zap.Logger) *Dispatcher {
	if cfg.WebhookURL == "" {
		panic("webhook URL is required")
	}
	if cfg.InstanceID == "" {
		panic("instance id is required")
	}
	if companies == nil || instances == nil {
		panic("company directory and instance source are required")
	}
	if logger == nil {
		panic("logger is required")
	}
	if cfg.JobName == "" {
		cfg.JobName = "daily-payment-reminders"
	}
	if cfg.DueDateConfigKey == "" {
		cfg.DueDateConfigKey = "clientDueDateField"
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 8
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Dispatcher{
		cfg:        cfg,
		companies:  companies,
		instances:  instances,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Run executes one fan-out pass. The error return is reserved for the company
// enumeration failing; per-company failures land in the outcomes and never
// abort the batch.
func (d *Dispatcher) Run(ctx context.Context, now time.Time) ([]Outcome, error) {
	companies, err := d.companies.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate companies: %w", err)
	}
	if len(companies) == 0 {
		d.logger.Info("no companies registered, nothing to dispatch")
		return nil, nil
	}

	outcomes := make([]Outcome, len(companies))
	sem := make(chan struct{}, d.cfg.MaxConcurrent)
	var wg sync.WaitGroup

	for i, company := range companies {
		wg.Add(1)
		go func(i int, company companiesservice.Company) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			outcomes[i] = d.dispatchCompany(ctx, company, now)
		}(i, company)
	}
	wg.Wait()

	var dispatched, skipped, failed int
	for _, o := range outcomes {
		switch o.Status {
		case OutcomeDispatched:
			dispatched++
		case OutcomeSkipped:
			skipped++
		case OutcomeFailed:
			failed++
		}
	}
	d.logger.Info("reminder fan-out completed",
		zap.Int("companies", len(companies)),
		zap.Int("dispatched", dispatched),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)

	return outcomes, nil
}

func (d *Dispatcher) dispatchCompany(ctx context.Context, company companiesservice.Company, now time.Time) (outcome Outcome) {
	logger := d.logger.With(zap.String("company_id", company.ID))

	// A worker must never take the batch down with it.
	defer func() {
		if r := recover(); r != nil {
			logger.Error("company dispatch panicked", zap.Any("panic", r))
			outcome = Outcome{CompanyID: company.ID, Status: OutcomeFailed, Reason: "panic during dispatch"}
		}
	}()

	instance, err := d.instances.GetInstance(ctx, company.ID, d.cfg.InstanceID)
	if errors.Is(err, automationsservice.ErrInstanceNotFound) {
		return Outcome{CompanyID: company.ID, Status: OutcomeSkipped, Reason: "automation not configured"}
	}
	if err != nil {
		logger.Error("load reminder instance failed", zap.Error(err))
		return Outcome{CompanyID: company.ID, Status: OutcomeFailed, Reason: "load instance failed"}
	}
	if !instance.Enabled {
		return Outcome{CompanyID: company.ID, Status: OutcomeSkipped, Reason: "automation disabled"}
	}

	dueDateField, _ := instance.Config[d.cfg.DueDateConfigKey].(string)
	if dueDateField == "" {
		// Misconfiguration, not a transient failure: warn and move on.
		logger.Warn("reminder config is missing the due-date field name",
			zap.String("config_key", d.cfg.DueDateConfigKey))
		return Outcome{CompanyID: company.ID, Status: OutcomeSkipped, Reason: "missing " + d.cfg.DueDateConfigKey}
	}

	clients, err := d.companies.ListEnabledClients(ctx, company.ID)
	if err != nil {
		logger.Error("list enabled clients failed", zap.Error(err))
		return Outcome{CompanyID: company.ID, Status: OutcomeFailed, Reason: "load clients failed"}
	}
	if len(clients) == 0 {
		return Outcome{CompanyID: company.ID, Status: OutcomeSkipped, Reason: "no enabled clients"}
	}

	payload := d.buildPayload(company, instance, clients, dueDateField, now)
	if err := d.postWebhook(ctx, logger, payload); err != nil {
		return Outcome{CompanyID: company.ID, Status: OutcomeFailed, Reason: "webhook call failed", ClientCount: len(clients)}
	}

	logger.Info("reminder dispatched", zap.Int("clients", len(clients)))
	return Outcome{CompanyID: company.ID, Status: OutcomeDispatched, ClientCount: len(clients)}
}

// Payload is the webhook body handed to the workflow engine.
type Payload struct {
	TriggeringMechanism string           `json:"triggeringMechanism"`
	InvokedByJob        string           `json:"invokedByJob"`
	InvokedAt           time.Time        `json:"invokedAt"`
	CompanyID           string           `json:"companyId"`
	CompanyName         string           `json:"companyName"`
	InstanceID          string           `json:"instanceId"`
	AutomationID        string           `json:"automationId"`
	Config              map[string]any   `json:"config"`
	Clients             []map[string]any `json:"clients"`
}

func (d *Dispatcher) buildPayload(company companiesservice.Company, instance automationsservice.Instance, clients []companiesservice.Client, dueDateField string, now time.Time) Payload {
	projected := make([]map[string]any, 0, len(clients))
	for _, client := range clients {
		projected = append(projected, map[string]any{
			"id":         client.ID,
			"name":       client.Name,
			"phone":      client.Phone,
			"email":      client.Email,
			dueDateField: client.Fields[dueDateField],
		})
	}

	return Payload{
		TriggeringMechanism: "schedule",
		InvokedByJob:        d.cfg.JobName,
		InvokedAt:           now,
		CompanyID:           company.ID,
		CompanyName:         company.Name,
		InstanceID:          d.cfg.InstanceID,
		AutomationID:        instance.AutomationID,
		Config:              instance.Config,
		Clients:             projected,
	}
}

func (d *Dispatcher) postWebhook(ctx context.Context, logger *zap.Logger, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		logger.Error("encode webhook payload failed", zap.Error(err))
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		logger.Error("build webhook request failed", zap.Error(err))
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		logger.Error("webhook call failed", zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// The engine reports run results through its own status callback;
		// here we only log and keep the batch going.
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		logger.Error("webhook answered non-2xx",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", respBody),
		)
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}

	return nil
}
