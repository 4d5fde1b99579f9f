package audit

import (
	"errors"
	"time"
)

// Category represents the type of audit event.
type Category string

const (
	CategoryPrivacy  Category = "privacy"
	CategorySecurity Category = "security"
)

// Action represents the action that occurred.
type Action string

const (
	ActionDeletionRequested Action = "deletion_requested"
	ActionDeletionCancelled Action = "deletion_cancelled"
	ActionLogin             Action = "login"
	ActionLogout            Action = "logout"
)

// Severity represents the severity level of an audit event.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// ResourceDeletionRequest is the resource type of deletion request events.
const ResourceDeletionRequest = "deletion_request"

// Domain errors.
var (
	ErrEmptyID     = errors.New("id is required")
	ErrEmptyActor  = errors.New("actor_id is required")
	ErrEmptyAction = errors.New("action is required")
)

// Event is one audit log entry. Events are append-only and outlive the
// resources they describe; a cancelled request's row is deleted but its events remain.
type Event struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Category     Category  `json:"category"`
	Action       Action    `json:"action"`
	Severity     Severity  `json:"severity"`
	ActorID      string    `json:"actor_id"`
	ActorEmail   string    `json:"actor_email"`
	ResourceID   string    `json:"resource_id,omitempty"`
	ResourceType string    `json:"resource_type,omitempty"`
	Description  string    `json:"description,omitempty"`
}

// NewEvent creates an info-level event.
// PRE: id, actorID and action are non-empty
// POST: Returns an Event stamped with now
func NewEvent(id string, now time.Time, actorID, actorEmail string, category Category, action Action) Event {
	return Event{
		ID:         id,
		Timestamp:  now,
		Category:   category,
		Action:     action,
		Severity:   SeverityInfo,
		ActorID:    actorID,
		ActorEmail: actorEmail,
	}
}

// Validate checks the required fields.
func (e Event) Validate() error {
	if e.ID == "" {
		return ErrEmptyID
	}
	if e.ActorID == "" {
		return ErrEmptyActor
	}
	if e.Action == "" {
		return ErrEmptyAction
	}
	return nil
}

// WithSeverity sets the severity level.
// PRE: s is valid severity
// POST: Event severity is updated
func (e Event) WithSeverity(s Severity) Event {
	e.Severity = s
	return e
}

// WithResource sets resource information.
// PRE: resourceType and resourceID are non-empty
// POST: Event resource fields are populated
func (e Event) WithResource(resourceType, resourceID string) Event {
	e.ResourceType = resourceType
	e.ResourceID = resourceID
	return e
}

// WithDescription sets the event description.
// PRE: description is non-empty
// POST: Event description is set
func (e Event) WithDescription(desc string) Event {
	e.Description = desc
	return e
}
