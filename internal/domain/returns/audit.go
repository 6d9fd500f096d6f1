package returns

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Actor identifies who performed an action on a return request
type Actor string

const actorAdminPrefix = "admin:"

// SystemActor is the engine itself (auto-approval, carrier webhooks)
func SystemActor() Actor { return "system" }

// CustomerActor is the submitting customer
func CustomerActor() Actor { return "customer" }

// AdminActor is a merchant admin identified by user ID
func AdminActor(userID uuid.UUID) Actor {
	return Actor(actorAdminPrefix + userID.String())
}

// IsAdmin reports whether the actor is a merchant admin
func (a Actor) IsAdmin() bool {
	return len(a) > len(actorAdminPrefix) && a[:len(actorAdminPrefix)] == actorAdminPrefix
}

// IsSystem reports whether the actor is the engine itself
func (a Actor) IsSystem() bool { return a == SystemActor() }

// String returns the string representation of the actor
func (a Actor) String() string { return string(a) }

// Audit actions recorded on the timeline
const (
	AuditActionRequested       = "return_requested"
	AuditActionAutoApproved    = "auto_approved"
	AuditActionApproved        = "approved"
	AuditActionDenied          = "denied"
	AuditActionRejected        = "rejected"
	AuditActionLabelIssued     = "label_issued"
	AuditActionInTransit       = "marked_in_transit"
	AuditActionReceived        = "received"
	AuditActionResolved        = "resolved"
	AuditActionArchived        = "archived"
	AuditActionComment         = "comment"
	AuditActionInternalComment = "internal_comment"
	AuditActionOverrideApplied = "override_applied"
)

// AuditEvent is one immutable entry on a return request's timeline. Events
// are append-only and ordered by a per-request monotonic sequence; there is
// no update or delete path.
type AuditEvent struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ReturnRequestID uuid.UUID `gorm:"type:uuid;not null;index:idx_audit_request_seq,unique" json:"return_request_id"`
	Seq             int       `gorm:"not null;index:idx_audit_request_seq,unique" json:"seq"`
	Actor           Actor     `gorm:"type:varchar(64);not null" json:"actor"`
	Action          string    `gorm:"type:varchar(64);not null" json:"action"`
	Detail          string    `gorm:"type:text" json:"detail,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// String renders the event for logs
func (e AuditEvent) String() string {
	return fmt.Sprintf("#%d %s by %s", e.Seq, e.Action, e.Actor)
}

func newAuditEvent(requestID uuid.UUID, seq int, actor Actor, action, detail string) AuditEvent {
	return AuditEvent{
		ID:              uuid.New(),
		ReturnRequestID: requestID,
		Seq:             seq,
		Actor:           actor,
		Action:          action,
		Detail:          detail,
		CreatedAt:       time.Now(),
	}
}
