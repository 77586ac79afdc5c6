package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"

	"github.com/NoroNetwork/ppv-streaming/internal/core/domain"
	"github.com/NoroNetwork/ppv-streaming/internal/core/port"
)

// SecurityEventRepository writes audit rows to ppv.security_logs.
type SecurityEventRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

var _ port.SecurityEventRepository = (*SecurityEventRepository)(nil)

func NewSecurityEventRepository(exec pgExecutor) *SecurityEventRepository {
	return &SecurityEventRepository{exec: exec, builder: newBuilder()}
}

// Insert appends event; the context map is stored as JSONB.
func (r *SecurityEventRepository) Insert(ctx context.Context, event domain.SecurityEvent) error {
	contextJSON := []byte("{}")
	if len(event.Context) > 0 {
		encoded, err := json.Marshal(event.Context)
		if err != nil {
			return fmt.Errorf("marshal security event context: %w", err)
		}
		contextJSON = encoded
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	stmt, args, err := r.builder.Insert("ppv.security_logs").
		Columns("event", "ip_address", "user_agent", "context", "created_at").
		Values(event.Event, event.IP, event.UserAgent, string(contextJSON), event.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert security event sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert security event: %w", err)
	}
	return nil
}
