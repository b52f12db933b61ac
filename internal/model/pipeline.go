package model

import "time"

// Schedule is a cron trigger belonging to a pipeline. Expressions are
// evaluated in UTC.
type Schedule struct {
	ID         int64  `json:"id"`
	PipelineID int64  `json:"pipeline_id,omitempty"`
	Cron       string `json:"cron"`
}

// Pipeline is a named, schedulable unit of work.
type Pipeline struct {
	ID                     int64      `json:"id"`
	Name                   string     `json:"name"`
	EmailsForNotifications *string    `json:"emails_for_notifications"`
	Status                 Status     `json:"status"`
	UpdatedAt              Timestamp  `json:"updated_at"`
	RunOnSchedule          bool       `json:"run_on_schedule"`
	HasJobs                bool       `json:"has_jobs"`
	Schedules              []Schedule `json:"schedules"`
	Params                 []Param    `json:"params"`
}

// IsActive reports whether the pipeline is currently executing.
func (p Pipeline) IsActive() bool {
	return p.Status == StatusRunning || p.Status == StatusStopping
}

// ShowsRunAction reports whether a "run" control applies to the current status.
func (p Pipeline) ShowsRunAction() bool {
	switch p.Status {
	case StatusIdle, StatusFinished, StatusFailed, StatusSucceeded:
		return true
	default:
		return false
	}
}

// ShowsStopAction reports whether a "stop" control applies to the current status.
func (p Pipeline) ShowsStopAction() bool { return p.IsActive() }

// BlocksRunning is always false: manual runs are allowed regardless of
// the schedule flag.
func (p Pipeline) BlocksRunning() bool { return false }

// BlocksStopping reports whether a stop request is already underway.
func (p Pipeline) BlocksStopping() bool { return p.Status == StatusStopping }

// BlocksManaging reports whether edits (jobs, params, schedules) are locked.
func (p Pipeline) BlocksManaging() bool { return p.RunOnSchedule || p.IsActive() }

// LastUpdated returns UpdatedAt as a time.Time (zero when absent).
func (p Pipeline) LastUpdated() time.Time { return p.UpdatedAt.Time }
