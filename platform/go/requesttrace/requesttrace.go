package requesttrace

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const ctxAuditInfo contextKey = "AUTOMIND_REQUEST_TRACE"

// ActorKind represents who initiated a call into the core.
type ActorKind string

const (
	// ActorKindEngine is the external workflow engine reporting progress.
	ActorKindEngine ActorKind = "workflow-engine"
	// ActorKindFrontend is the browser UI (upload flow, onboarding).
	ActorKindFrontend ActorKind = "frontend"
	// ActorKindScheduler is the in-process scheduled trigger.
	ActorKindScheduler ActorKind = "scheduler"
	// ActorKindAnonymous is any caller that did not identify itself.
	ActorKindAnonymous ActorKind = "anonymous"
)

// AuditInfo captures call-scoped metadata for traceability.
type AuditInfo struct {
	ActorKind ActorKind
	RequestID string
}

// FromCaller maps the self-declared caller name onto a known actor kind.
// Unknown names stay anonymous; the field is informational, not an identity.
func FromCaller(caller, requestID string) AuditInfo {
	kind := ActorKindAnonymous
	switch ActorKind(caller) {
	case ActorKindEngine, ActorKindFrontend:
		kind = ActorKind(caller)
	}
	return AuditInfo{ActorKind: kind, RequestID: ensureRequestID(requestID)}
}

// Anonymous builds an AuditInfo for an unidentified caller.
func Anonymous(requestID string) AuditInfo {
	return AuditInfo{ActorKind: ActorKindAnonymous, RequestID: ensureRequestID(requestID)}
}

// Scheduled builds an AuditInfo for a scheduler-initiated run with a fresh id.
func Scheduled() AuditInfo {
	return AuditInfo{ActorKind: ActorKindScheduler, RequestID: uuid.NewString()}
}

func ensureRequestID(requestID string) string {
	if requestID == "" {
		return uuid.NewString()
	}
	return requestID
}

// IntoContext stores the AuditInfo on the context.
func IntoContext(ctx context.Context, audit AuditInfo) context.Context {
	return context.WithValue(ctx, ctxAuditInfo, audit)
}

// FromContext extracts the AuditInfo from context, returning false when absent.
func FromContext(ctx context.Context) (AuditInfo, bool) {
	if ctx == nil {
		return AuditInfo{}, false
	}
	v := ctx.Value(ctxAuditInfo)
	if v == nil {
		return AuditInfo{}, false
	}
	audit, ok := v.(AuditInfo)
	return audit, ok
}

// FromContextOrAnonymous returns the stored AuditInfo, or an anonymous record.
func FromContextOrAnonymous(ctx context.Context) AuditInfo {
	if audit, ok := FromContext(ctx); ok {
		return audit
	}
	return Anonymous("")
}
