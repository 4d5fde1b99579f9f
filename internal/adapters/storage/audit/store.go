package audit

import (
	"context"
	"fmt"
	"strings"

	domain "deletionportal/internal/domain/audit"
)

// Store defines the interface for audit event persistence.
type Store interface {
	// Save appends an audit event.
	// PRE: event is valid
	// POST: Event is persisted
	Save(ctx context.Context, event domain.Event) error

	// List returns audit events with optional filtering.
	// PRE: limit > 0
	// POST: Returns events ordered by timestamp desc
	List(ctx context.Context, filter Filter, limit int) ([]domain.Event, error)
}

// Filter defines query parameters for listing audit events. Nil fields are not filtered on.
type Filter struct {
	Category *domain.Category
	Action   *domain.Action
	ActorID  *string
}

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
)

const columns = "id, timestamp, category, action, severity, actor_id, actor_email, resource_id, resource_type, description"

// where renders the filter as a WHERE clause, numbering placeholders with ph.
func (f Filter) where(ph func(n int) string) (string, []any) {
	var conds []string
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf("%s = %s", col, ph(len(args))))
	}
	if f.Category != nil {
		add("category", string(*f.Category))
	}
	if f.Action != nil {
		add("action", string(*f.Action))
	}
	if f.ActorID != nil {
		add("actor_id", *f.ActorID)
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
