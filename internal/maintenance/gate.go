package maintenance

import (
	"context"
	"time"
)

// Source exposes the maintenance flag and its optional window. The flag store
// itself is owned elsewhere; the gate only consults it.
type Source interface {
	MaintenanceMode(ctx context.Context) (enabled bool, start, end *time.Time)
}

// Gate decides whether an external-service call may proceed. Emergency-exempt
// operator paths bypass an active maintenance window.
type Gate struct {
	source Source

	Now func() time.Time
}

func NewGate(source Source) *Gate {
	return &Gate{source: source, Now: time.Now}
}

// Allows reports whether external calls may run right now. The reason is
// empty when allowed.
func (g *Gate) Allows(ctx context.Context, emergency bool) (bool, string) {
	enabled, start, end := g.source.MaintenanceMode(ctx)
	if !enabled {
		return true, ""
	}

	now := g.Now()
	if start != nil && now.Before(*start) {
		return true, ""
	}
	if end != nil && !now.Before(*end) {
		return true, ""
	}

	if emergency {
		return true, ""
	}
	return false, "maintenance mode active"
}
