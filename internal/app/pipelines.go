package app

import (
	"context"
	"strconv"
	"time"

	"crmintctl/internal/eventbus"
	"crmintctl/internal/model"
	"crmintctl/internal/storage"
	"crmintctl/pkg/logx"
)

// TimeZone is the configured display zone name ("Local" when unset).
func (a *App) TimeZone() string { return displayZone(a.cfgm.Get()) }

// StartPipeline asks the backend to run pipeline id and records the outcome.
func (a *App) StartPipeline(ctx context.Context, id int64) (model.Pipeline, error) {
	return a.pipelineAction(ctx, id, storage.ActionStartPipeline, eventbus.PipelineStarted, a.client.StartPipeline)
}

// StopPipeline asks the backend to stop pipeline id and records the outcome.
func (a *App) StopPipeline(ctx context.Context, id int64) (model.Pipeline, error) {
	return a.pipelineAction(ctx, id, storage.ActionStopPipeline, eventbus.PipelineStopped, a.client.StopPipeline)
}

func (a *App) pipelineAction(ctx context.Context, id int64, action, event string, call func(context.Context, int64) (model.Pipeline, error)) (model.Pipeline, error) {
	start := time.Now()
	p, err := call(ctx, id)
	took := time.Since(start)
	target := strconv.FormatInt(id, 10)

	fields := []logx.Field{logx.String("action", action), logx.Int64("pipeline_id", id), logx.Duration("took", took)}
	if err != nil {
		a.log.Warn("pipeline action failed", append(fields, logx.Err(err))...)
	} else {
		a.log.Info("pipeline action done", append(fields, logx.String("status", p.Status.String()))...)
	}
	a.bus.Publish(eventbus.Event{Type: event, Data: p, Err: err})
	storage.Record(context.WithoutCancel(ctx), a.store, a.log, storage.AuditEntry{
		At:     start,
		Actor:  a.Actor(),
		Action: action,
		Target: target,
	}, took, err)
	return p, err
}
