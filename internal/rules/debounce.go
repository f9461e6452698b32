package rules

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/neomind/edge/internal/neoerr"
)

// ShouldTrigger evaluates r's condition against vp and applies FOR-duration
// debouncing. The condition must hold continuously for at least r.For
// before ShouldTrigger returns true; any false observation resets the
// continuous-true clock. A rule with no FOR clause (r.For == 0) triggers
// on the first true observation.
//
// A TriggerSchedule rule bypasses the condition tree entirely: it fires
// on its own cron cadence, independent of any live metric value.
func ShouldTrigger(r *Rule, now time.Time, vp ValueProvider) (bool, error) {
	if r.Trigger.Kind == TriggerSchedule {
		return scheduleDue(r, now)
	}

	ok, err := EvaluateCondition(r, r.Condition, vp)
	if err != nil {
		return false, err
	}

	if !ok {
		r.conditionTrueSince = time.Time{}
		r.firedForCurrentTrue = false
		return false, nil
	}

	if r.conditionTrueSince.IsZero() {
		r.conditionTrueSince = now
	}

	if r.firedForCurrentTrue {
		return false, nil
	}

	if r.For <= 0 {
		r.firedForCurrentTrue = true
		return true, nil
	}

	if now.Sub(r.conditionTrueSince) >= r.For {
		r.firedForCurrentTrue = true
		return true, nil
	}
	return false, nil
}

// scheduleDue reports whether a TriggerSchedule rule's cron expression has
// come due since it was last checked, seeding the first occurrence without
// firing so a rule added mid-period doesn't immediately trigger.
func scheduleDue(r *Rule, now time.Time) (bool, error) {
	if r.Trigger.CronExpr == "" {
		return false, neoerr.Validationf("rule %q has a schedule trigger with no cron expression", r.Metadata.ID)
	}

	sched, err := cron.ParseStandard(r.Trigger.CronExpr)
	if err != nil {
		return false, neoerr.Validationf("rule %q has an invalid cron expression %q: %v", r.Metadata.ID, r.Trigger.CronExpr, err)
	}

	if r.nextScheduledFire.IsZero() {
		r.nextScheduledFire = sched.Next(now)
		return false, nil
	}
	if now.Before(r.nextScheduledFire) {
		return false, nil
	}
	r.nextScheduledFire = sched.Next(now)
	return true, nil
}
