// Package service implements the execution-lifecycle core for automation
// instances: applying partial status updates reported by the external
// workflow engine, and arming an instance for a new run.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/automind-ia/automind-saas/platform/go/callable"
	"github.com/automind-ia/automind-saas/platform/go/docstore"
	platformlogging "github.com/automind-ia/automind-saas/platform/go/logging"
)

// ErrInstanceNotFound is returned by repositories when the addressed
// automation instance does not exist.
var ErrInstanceNotFound = errors.New("automation instance not found")

// Status is the closed execution state set of an automation instance.
// The workflow engine historically reported free-form run-kind variants such
// as "completed_batch"; those collapse onto StatusCompleted at the boundary.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// ParseStatus normalizes a reported status string onto the closed set.
func ParseStatus(raw string) (Status, bool) {
	switch s := Status(strings.ToLower(strings.TrimSpace(raw))); {
	case s == StatusIdle || s == StatusProcessing || s == StatusCompleted || s == StatusError:
		return s, true
	case strings.HasPrefix(string(s), "completed_"):
		return StatusCompleted, true
	default:
		return "", false
	}
}

// Instance is the read model of one company's enabled automation.
type Instance struct {
	ID           string
	AutomationID string
	Enabled      bool
	Config       map[string]any
	Status       string
	LastRun      *time.Time
}

// UpdateRequest is one status-update call from the workflow engine. It is
// either client-scoped (ClientID set) or instance-scoped (InstanceStatus set);
// the client branch takes precedence when both are present.
type UpdateRequest struct {
	CompanyID  string `json:"companyId"`
	InstanceID string `json:"instanceId"`

	InstanceStatus         string `json:"instanceStatus,omitempty"`
	InstanceLastRun        string `json:"instanceLastRun,omitempty"`
	InstanceResultFileURL  string `json:"instanceResultFileUrl,omitempty"`
	InstanceStoragePath    string `json:"instanceStoragePath,omitempty"`
	InstanceResultFileName string `json:"instanceResultFileName,omitempty"`
	InstanceErrorMessage   string `json:"instanceErrorMessage,omitempty"`
	InstanceLastRunDetails any    `json:"instanceLastRunDetails,omitempty"`

	ClientID             string `json:"clientId,omitempty"`
	ClientWhatsappStatus string `json:"clientWhatsappStatus,omitempty"`
	ClientEmailStatus    string `json:"clientEmailStatus,omitempty"`
	ClientErrorMessage   string `json:"clientErrorMessage,omitempty"`
	ClientMessageID      string `json:"clientMessageId,omitempty"`
	ClientRecipient      string `json:"clientRecipient,omitempty"`
	ClientFailureReason  string `json:"clientFailureReason,omitempty"`
	ClientEventTimestamp string `json:"clientEventTimestamp,omitempty"`
}

// Repository abstracts the per-company document namespace. Updates are blind
// partial writes: the repo fails when the target record does not exist.
type Repository interface {
	GetInstance(ctx context.Context, companyID, instanceID string) (Instance, error)
	UpdateInstance(ctx context.Context, companyID, instanceID string, updates []docstore.Update) error
	UpdateClient(ctx context.Context, companyID, clientID string, updates []docstore.Update) error
}

// Service applies lifecycle transitions to instances and clients.
type Service struct {
	repo   Repository
	logger *zap.Logger
}

// New constructs a Service with required dependencies.
func New(repo Repository, logger *zap.Logger) *Service {
	if repo == nil {
		panic("automations repo is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Service{repo: repo, logger: logger}
}

// UpdateStatus reconciles one partial status update into either a client
// record or the instance record. Field-level parse failures are logged and
// dropped; only missing identifiers, an empty update, or a store failure fail
// the call.
func (s *Service) UpdateStatus(ctx context.Context, req UpdateRequest) (string, error) {
	if req.CompanyID == "" || req.InstanceID == "" {
		return "", callable.InvalidArgument("companyId and instanceId are required")
	}

	switch {
	case req.ClientID != "":
		return s.updateClient(ctx, req)
	case req.InstanceStatus != "":
		return s.updateInstance(ctx, req)
	default:
		return "", callable.InvalidArgument("insufficient data for update: provide clientId or instanceStatus")
	}
}

func (s *Service) updateClient(ctx context.Context, req UpdateRequest) (string, error) {
	logger := s.log(ctx).With(
		zap.String("company_id", req.CompanyID),
		zap.String("client_id", req.ClientID),
	)

	// Every reconciled write stamps the record, whatever else changed.
	updates := []docstore.Update{docstore.Stamp("lastStatusUpdate")}

	if req.ClientWhatsappStatus != "" {
		updates = append(updates, docstore.Set("lastWhatsappStatus", req.ClientWhatsappStatus))
		if isDeliverySuccess(req.ClientWhatsappStatus) {
			updates = append(updates, docstore.Stamp("lastPaymentReminderSentWhatsapp"))
		}
	}
	if req.ClientEmailStatus != "" {
		updates = append(updates, docstore.Set("lastEmailStatus", req.ClientEmailStatus))
		if isDeliverySuccess(req.ClientEmailStatus) {
			updates = append(updates, docstore.Stamp("lastPaymentReminderSentEmail"))
		}
	}
	if req.ClientMessageID != "" {
		updates = append(updates, docstore.Set("lastMessageId", req.ClientMessageID))
	}
	if req.ClientRecipient != "" {
		updates = append(updates, docstore.Set("lastRecipient", req.ClientRecipient))
	}
	if req.ClientFailureReason != "" {
		updates = append(updates, docstore.Set("lastFailureReason", req.ClientFailureReason))
	}
	if req.ClientEventTimestamp != "" {
		if t, err := parseISOTime(req.ClientEventTimestamp); err != nil {
			logger.Warn("invalid clientEventTimestamp, field skipped",
				zap.String("value", req.ClientEventTimestamp), zap.Error(err))
		} else {
			updates = append(updates, docstore.Set("lastEventAt", t))
		}
	}

	// The error message is only cleared on an affirmative delivery success;
	// an update that says nothing about the outcome leaves it in place.
	// Replaying a stale success after a newer failure still clears it: the
	// heuristic is a function of the latest message, not of history.
	if req.ClientErrorMessage != "" {
		updates = append(updates, docstore.Set("clientErrorMessage", req.ClientErrorMessage))
	} else if isDeliverySuccess(req.ClientWhatsappStatus) || isDeliverySuccess(req.ClientEmailStatus) {
		updates = append(updates, docstore.Del("clientErrorMessage"))
	}

	if err := s.repo.UpdateClient(ctx, req.CompanyID, req.ClientID, updates); err != nil {
		return "", callable.Internal("failed to update client status", err)
	}

	logger.Info("client status updated")
	return "client status updated", nil
}

func (s *Service) updateInstance(ctx context.Context, req UpdateRequest) (string, error) {
	logger := s.log(ctx).With(
		zap.String("company_id", req.CompanyID),
		zap.String("instance_id", req.InstanceID),
	)

	status, ok := ParseStatus(req.InstanceStatus)
	if !ok {
		return "", callable.InvalidArgument(fmt.Sprintf("unknown instanceStatus %q", req.InstanceStatus))
	}

	updates := []docstore.Update{docstore.Set("status", string(status))}

	if req.InstanceLastRun != "" {
		if t, err := parseISOTime(req.InstanceLastRun); err != nil {
			logger.Warn("invalid instanceLastRun, field skipped",
				zap.String("value", req.InstanceLastRun), zap.Error(err))
		} else {
			updates = append(updates, docstore.Set("lastRun", t))
		}
	}
	if req.InstanceResultFileURL != "" {
		updates = append(updates, docstore.Set("resultFileUrl", req.InstanceResultFileURL))
	}
	if req.InstanceStoragePath != "" {
		updates = append(updates, docstore.Set("storagePath", req.InstanceStoragePath))
	}
	if req.InstanceResultFileName != "" {
		updates = append(updates, docstore.Set("resultFileName", req.InstanceResultFileName))
	}

	// A run that does not report an error clears the previous one, unless the
	// new state itself is the error state.
	if req.InstanceErrorMessage != "" {
		updates = append(updates, docstore.Set("errorMessage", req.InstanceErrorMessage))
	} else if status != StatusError {
		updates = append(updates, docstore.Del("errorMessage"))
	}

	if req.InstanceLastRunDetails != nil {
		if details, ok := req.InstanceLastRunDetails.(map[string]any); ok {
			updates = append(updates, docstore.Set("lastRunDetails", details))
		} else {
			logger.Warn("instanceLastRunDetails is not a key/value object, field dropped")
		}
	}

	if err := s.repo.UpdateInstance(ctx, req.CompanyID, req.InstanceID, updates); err != nil {
		return "", callable.Internal("failed to update instance status", err)
	}

	logger.Info("instance status updated", zap.String("status", string(status)))
	return "automation status updated", nil
}

// MarkProcessing arms an instance for a new run: status becomes processing,
// the previous run's result and error fields are cleared in the same write,
// and lastRun is stamped with the store's server time. Callers must await
// this before handing off to the workflow engine.
func (s *Service) MarkProcessing(ctx context.Context, companyID, instanceID string) error {
	if companyID == "" || instanceID == "" {
		return callable.InvalidArgument("companyId and instanceId are required")
	}

	updates := []docstore.Update{
		docstore.Set("status", string(StatusProcessing)),
		docstore.Del("resultFileUrl"),
		docstore.Del("storagePath"),
		docstore.Del("resultFileName"),
		docstore.Del("errorMessage"),
		docstore.Del("lastRunDetails"),
		docstore.Stamp("lastRun"),
	}

	if err := s.repo.UpdateInstance(ctx, companyID, instanceID, updates); err != nil {
		return callable.Internal("failed to mark instance as processing", err)
	}

	s.log(ctx).Info("instance marked as processing",
		zap.String("company_id", companyID),
		zap.String("instance_id", instanceID),
	)
	return nil
}

func (s *Service) log(ctx context.Context) *zap.Logger {
	if logger, ok := platformlogging.FromContext(ctx); ok {
		return logger
	}
	return s.logger
}

func isDeliverySuccess(status string) bool {
	switch strings.ToLower(status) {
	case "sent", "delivered":
		return true
	default:
		return false
	}
}

// parseISOTime accepts the ISO-8601 timestamps the engine emits, with or
// without fractional seconds.
func parseISOTime(value string) (time.Time, error) {
	return time.Parse(time.RFC3339, value)
}
