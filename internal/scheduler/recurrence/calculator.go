package recurrence

import (
	"errors"
	"fmt"
	"time"

	"github.com/postpilot-hq/postpilot/internal/domain/models"
	cronlib "github.com/robfig/cron/v3"
)

var (
	ErrUnknownFrequency = errors.New("unknown frequency")
	ErrInvalidCron      = errors.New("invalid cron expression")
)

// Calculator computes the next future run instant for a schedule. It is pure:
// no I/O, deterministic given now.
type Calculator struct {
	parser cronlib.Parser
}

func NewCalculator() *Calculator {
	return &Calculator{
		parser: cronlib.NewParser(cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow),
	}
}

// NextRun returns the smallest instant of the form base + k*step (k >= 0)
// that is strictly after now. For "once" it returns base unchanged; the
// caller is responsible for deactivating the schedule after its single run.
// Monthly steps advance by calendar months from the anchor, so the anchor's
// day-of-month is preserved wherever the target month has it; overflow (e.g.
// the 31st into a 30-day month) rolls forward by Go's date normalization.
func (c *Calculator) NextRun(base time.Time, frequency, cronExpr string, now time.Time) (time.Time, error) {
	switch frequency {
	case models.FrequencyOnce:
		return base, nil

	case models.FrequencyDaily:
		return nextByStep(base, 24*time.Hour, now), nil

	case models.FrequencyWeekly:
		return nextByStep(base, 7*24*time.Hour, now), nil

	case models.FrequencyMonthly:
		return nextByMonth(base, now), nil

	case models.FrequencyCron:
		schedule, err := c.parser.Parse(cronExpr)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidCron, err)
		}
		return schedule.Next(now), nil

	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownFrequency, frequency)
	}
}

// Validate reports whether the frequency (and cron expression, when needed)
// can produce run instants.
func (c *Calculator) Validate(frequency, cronExpr string) error {
	switch frequency {
	case models.FrequencyOnce, models.FrequencyDaily, models.FrequencyWeekly, models.FrequencyMonthly:
		return nil
	case models.FrequencyCron:
		if _, err := c.parser.Parse(cronExpr); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidCron, err)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFrequency, frequency)
	}
}

func nextByStep(base time.Time, step time.Duration, now time.Time) time.Time {
	if base.After(now) {
		return base
	}
	k := now.Sub(base)/step + 1
	candidate := base.Add(time.Duration(k) * step)
	// Guard against landing exactly on now when the delta divides evenly.
	for !candidate.After(now) {
		candidate = candidate.Add(step)
	}
	return candidate
}

func nextByMonth(base time.Time, now time.Time) time.Time {
	if base.After(now) {
		return base
	}
	// Advance k months from the anchor rather than chaining AddDate calls,
	// so a normalized overflow month does not shift later anchors.
	for k := 1; ; k++ {
		candidate := base.AddDate(0, k, 0)
		if candidate.After(now) {
			return candidate
		}
	}
}
