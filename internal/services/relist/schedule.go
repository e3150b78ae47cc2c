package relist

import (
	"time"

	"github.com/noakmilo/qventory-relist/internal/models"
	"github.com/noakmilo/qventory-relist/internal/utils"
)

// immediateRunBackdate schedules a first run a few seconds in the past so the
// very next scheduler tick is guaranteed to pick it up.
const immediateRunBackdate = 5 * time.Second

// CalculateNextRun computes a rule's next execution time in UTC, or nil when
// the rule has nothing scheduled (manual mode without a pending trigger).
//
// Auto rules always come back with a non-nil time: any computation problem in
// the quiet-hours path falls back to a bare interval so a rule is never left
// unscheduled.
func CalculateNextRun(rule *models.RelistRuleEntity, now time.Time) *time.Time {
	now = now.UTC()

	switch rule.Mode {
	case models.ModeManual:
		if rule.ManualConfig != nil && rule.ManualConfig.ManualTriggerRequested {
			return utils.ToPointer(now)
		}
		return nil
	case models.ModeAuto:
		if rule.AutoConfig == nil {
			return nil
		}
		return utils.ToPointer(calculateAutoNextRun(rule, now))
	}
	return nil
}

func calculateAutoNextRun(rule *models.RelistRuleEntity, now time.Time) time.Time {
	cfg := rule.AutoConfig

	// First relist requested immediately: quiet hours do not apply to this
	// one run.
	if rule.RunCount == 0 && cfg.RunFirstRelistImmediately {
		return now.Add(-immediateRunBackdate)
	}

	interval := cfg.Frequency.IntervalDays(cfg.CustomIntervalDays)
	candidate := now.AddDate(0, 0, interval)

	if cfg.QuietHoursStart == "" {
		return candidate
	}

	clamped, err := clampToQuietHoursStart(candidate, now, cfg.QuietHoursStart, cfg.Timezone)
	if err != nil {
		// Fall back to the bare interval rather than leaving the rule
		// unscheduled.
		return candidate
	}
	return clamped
}

// clampToQuietHoursStart moves the candidate's time-of-day to the start of the
// rule's quiet window in its own timezone, rolling to the next day when the
// clamped instant already passed.
func clampToQuietHoursStart(candidate, now time.Time, quietStart, timezone string) (time.Time, error) {
	hour, minute, err := utils.ParseClockTime(quietStart)
	if err != nil {
		return time.Time{}, err
	}

	loc := time.UTC
	if timezone != "" {
		loc, err = time.LoadLocation(timezone)
		if err != nil {
			return time.Time{}, err
		}
	}

	local := utils.AtClockTime(candidate.In(loc), hour, minute)
	if !local.After(now) {
		local = local.AddDate(0, 0, 1)
	}
	return local.UTC(), nil
}
