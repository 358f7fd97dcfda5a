package governor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/postpilot-hq/postpilot/internal/domain/models"
	pkgredis "github.com/postpilot-hq/postpilot/internal/pkg/redis"
	"github.com/rs/zerolog/log"
)

// ActivitySink receives threshold notifications as durable log entries.
type ActivitySink interface {
	Append(ctx context.Context, entry *models.ActivityLog) error
}

// Notifier emits threshold notifications at most once per cooldown window per
// key. With Redis configured the cooldown holds across replicas; otherwise an
// in-process map is used.
type Notifier struct {
	activity ActivitySink
	settings Settings
	redis    *pkgredis.Client

	mu    sync.Mutex
	local map[string]time.Time

	Now func() time.Time
}

func NewNotifier(activity ActivitySink, settings Settings, redisClient *pkgredis.Client) *Notifier {
	return &Notifier{
		activity: activity,
		settings: settings,
		redis:    redisClient,
		local:    make(map[string]time.Time),
		Now:      time.Now,
	}
}

func (n *Notifier) RateLimitExceeded(ctx context.Context, caller, endpoint, method string, limit int) {
	key := "notify:ratelimit:" + counterKey(caller, endpoint, method)
	if n.onCooldown(ctx, key) {
		return
	}

	msg := fmt.Sprintf("rate limit of %d/hour exceeded for %s %s by %s", limit, method, endpoint, caller)
	log.Warn().
		Str("caller", caller).
		Str("endpoint", endpoint).
		Str("method", method).
		Msg("Rate limit exceeded")

	n.append(ctx, &models.ActivityLog{
		Action:    models.ActivityRateLimitHit,
		Message:   msg,
		Success:   false,
		CreatedAt: n.Now(),
	})
}

func (n *Notifier) BudgetWarning(ctx context.Context, userID uuid.UUID, spent, budget int) {
	log.Warn().
		Str("user_id", userID.String()).
		Int("spent", spent).
		Int("budget", budget).
		Msg("Token budget warning threshold crossed")

	uid := userID
	n.append(ctx, &models.ActivityLog{
		UserID:    &uid,
		Action:    models.ActivityBudgetWarning,
		Message:   fmt.Sprintf("token spend %d has crossed 80%% of the daily budget %d", spent, budget),
		Success:   false,
		CreatedAt: n.Now(),
	})
}

func (n *Notifier) BudgetExceeded(ctx context.Context, userID uuid.UUID, spent, budget int) {
	key := "notify:budget:" + userID.String()
	if n.onCooldown(ctx, key) {
		return
	}

	log.Warn().
		Str("user_id", userID.String()).
		Int("spent", spent).
		Int("budget", budget).
		Msg("Daily token budget exceeded")

	uid := userID
	n.append(ctx, &models.ActivityLog{
		UserID:    &uid,
		Action:    models.ActivityBudgetExceeded,
		Message:   fmt.Sprintf("daily token budget %d exhausted (spent %d)", budget, spent),
		Success:   false,
		CreatedAt: n.Now(),
	})
}

// onCooldown marks the key and reports whether it was already marked inside
// the cooldown window.
func (n *Notifier) onCooldown(ctx context.Context, key string) bool {
	ttl := n.settings.NotifyCooldown(ctx)

	if n.redis != nil {
		held, err := n.redis.Cooldown(ctx, key, ttl)
		if err == nil {
			return held
		}
		// Redis down: fall through to the local map so notifications keep
		// their idempotency per process.
	}

	now := n.Now()
	n.mu.Lock()
	defer n.mu.Unlock()
	if at, ok := n.local[key]; ok && now.Sub(at) < ttl {
		return true
	}
	n.local[key] = now
	return false
}

func (n *Notifier) append(ctx context.Context, entry *models.ActivityLog) {
	if n.activity == nil {
		return
	}
	if err := n.activity.Append(ctx, entry); err != nil {
		log.Error().Err(err).Str("action", entry.Action).Msg("Failed to write notification log")
	}
}
