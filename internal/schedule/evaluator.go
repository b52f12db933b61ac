package schedule

import (
	"time"

	"crmintctl/internal/model"
	"crmintctl/pkg/logx"
	"crmintctl/pkg/timefmt"
)

const (
	labelPrefix     = "Run on schedule"
	noValidSchedule = "no valid schedules"
)

// Invalid describes a schedule whose expression failed to parse.
type Invalid struct {
	ScheduleID int64
	Cron       string
	Err        error
}

// Result is the outcome of evaluating a set of schedules.
type Result struct {
	Next    time.Time
	OK      bool
	Invalid []Invalid
}

// Evaluator computes upcoming occurrences across pipeline schedules.
type Evaluator struct {
	log logx.Logger
}

func New(log logx.Logger) *Evaluator {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Evaluator{log: log}
}

// Evaluate computes the earliest fire time strictly after now across
// schedules. Schedules that fail to parse are logged and skipped; they never
// abort the rest.
func (e *Evaluator) Evaluate(schedules []model.Schedule, now time.Time) Result {
	var res Result
	for _, s := range schedules {
		next, err := NextAfter(s.Cron, now)
		if err != nil {
			e.log.Warn("invalid cron in schedule",
				logx.Int64("schedule_id", s.ID),
				logx.String("cron", s.Cron),
				logx.Err(err),
			)
			res.Invalid = append(res.Invalid, Invalid{ScheduleID: s.ID, Cron: s.Cron, Err: err})
			continue
		}
		if !res.OK || next.Before(res.Next) {
			res.Next = next
			res.OK = true
		}
	}
	return res
}

// NextOccurrence is Evaluate without the diagnostics.
func (e *Evaluator) NextOccurrence(schedules []model.Schedule, now time.Time) (time.Time, bool) {
	res := e.Evaluate(schedules, now)
	return res.Next, res.OK
}

// Label renders the schedule line for a pipeline, e.g.
// "Run on schedule tomorrow at 9:00 AM". Pipelines that do not run on
// schedule get an empty label; the schedules are not evaluated at all.
func (e *Evaluator) Label(p model.Pipeline, now time.Time, loc *time.Location, withPrefix bool) string {
	if !p.RunOnSchedule {
		return ""
	}
	suffix := noValidSchedule
	if next, ok := e.NextOccurrence(p.Schedules, now); ok {
		suffix = timefmt.LowerFirst(timefmt.Calendar(next, now, loc))
	}
	if !withPrefix {
		return suffix
	}
	return labelPrefix + " " + suffix
}

// Due returns the ids of run-on-schedule pipelines with at least one schedule
// matching now (minute resolution, UTC). Expressions the strict matcher
// rejects are logged and treated as not matching.
func (e *Evaluator) Due(pipelines []model.Pipeline, now time.Time) []int64 {
	var ids []int64
	for _, p := range pipelines {
		if !p.RunOnSchedule {
			continue
		}
		for _, s := range p.Schedules {
			ok, err := Match(s.Cron, now)
			if err != nil {
				e.log.Warn("schedule not matchable",
					logx.Int64("pipeline_id", p.ID),
					logx.Int64("schedule_id", s.ID),
					logx.String("cron", s.Cron),
					logx.Err(err),
				)
				continue
			}
			if ok {
				ids = append(ids, p.ID)
				break
			}
		}
	}
	return ids
}
