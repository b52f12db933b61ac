package tasksinfo

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"crmintctl/internal/eventbus"
	"crmintctl/internal/model"
)

var fixedNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

type fakeFetcher struct {
	mu      sync.Mutex
	info    model.TasksInfo
	err     error
	calls   atomic.Int32
	entered chan struct{}
	gate    chan struct{}
}

func (f *fakeFetcher) GetTasksInfo(ctx context.Context) (model.TasksInfo, error) {
	f.calls.Add(1)
	if f.entered != nil {
		select {
		case f.entered <- struct{}{}:
		default:
		}
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return model.TasksInfo{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.info, f.err
}

func (f *fakeFetcher) set(info model.TasksInfo, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.info, f.err = info, err
}

func infoWithOldest(age time.Duration, running int) model.TasksInfo {
	ts := model.Timestamp{Time: fixedNow.Add(-age)}
	return model.TasksInfo{OldestTaskTime: &ts, RunningTasksCount: running}
}

func newService(f Fetcher, bus eventbus.Bus, interval time.Duration) *Service {
	return New(f, Config{Interval: interval, TimeZone: "UTC"}, Options{
		Bus: bus,
		Now: func() time.Time { return fixedNow },
	})
}

func waitEvent(t *testing.T, ch <-chan eventbus.Event) eventbus.Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return eventbus.Event{}
}

func TestBuildSnapshot(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		info        model.TasksInfo
		err         error
		wantOldest  bool
		wantSince   string
		wantRunning int
		wantErr     string
	}{
		{name: "oldest", info: infoWithOldest(90*time.Second, 4), wantOldest: true, wantSince: "1 minute", wantRunning: 4},
		{name: "days", info: infoWithOldest(49*time.Hour, 0), wantOldest: true, wantSince: "2 days"},
		{name: "no oldest", info: model.TasksInfo{RunningTasksCount: 2}, wantRunning: 2},
		{name: "failure", info: infoWithOldest(time.Hour, 9), err: errors.New("503"), wantErr: "503"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := BuildSnapshot(tt.info, tt.err, "UTC", fixedNow)
			if (got.OldestTaskTime != nil) != tt.wantOldest {
				t.Fatalf("OldestTaskTime = %v", got.OldestTaskTime)
			}
			if got.TimeSinceOldest != tt.wantSince || got.RunningTasksCount != tt.wantRunning || got.LastError != tt.wantErr {
				t.Fatalf("snapshot = %+v", got)
			}
			if tt.wantOldest && got.TimeZone != "UTC" {
				t.Fatalf("TimeZone = %q", got.TimeZone)
			}
			if !tt.wantOldest && got.TimeZone != "" {
				t.Fatalf("TimeZone = %q, want empty", got.TimeZone)
			}
		})
	}
}

func TestStartFetchesImmediately(t *testing.T) {
	t.Parallel()
	f := &fakeFetcher{info: infoWithOldest(2*time.Hour, 3)}
	bus := eventbus.New()
	ch, unsub := bus.Subscribe(4, eventbus.TasksInfoUpdated)
	defer unsub()

	s := newService(f, bus, time.Hour)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop(context.Background())

	e := waitEvent(t, ch)
	snap, ok := e.Data.(Snapshot)
	if !ok || snap.TimeSinceOldest != "2 hours" || snap.RunningTasksCount != 3 {
		t.Fatalf("event data = %+v", e.Data)
	}
	if got := s.Snapshot(); got.TimeSinceOldest != "2 hours" {
		t.Fatalf("Snapshot = %+v", got)
	}
	if age, ok := s.Snapshot().Age(fixedNow); !ok || age != 2*time.Hour {
		t.Fatalf("Age = %v, %v", age, ok)
	}
}

func TestFailureResetsToDefaults(t *testing.T) {
	t.Parallel()
	f := &fakeFetcher{info: infoWithOldest(time.Minute, 5)}
	bus := eventbus.New()
	ch, unsub := bus.Subscribe(4)
	defer unsub()

	s := newService(f, bus, time.Hour)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop(context.Background())
	if e := waitEvent(t, ch); e.Type != eventbus.TasksInfoUpdated {
		t.Fatalf("first event = %s", e.Type)
	}

	f.set(model.TasksInfo{}, errors.New("backend unavailable"))
	if err := s.Refresh(context.Background()); err == nil {
		t.Fatal("Refresh expected error")
	}
	e := waitEvent(t, ch)
	if e.Type != eventbus.TasksInfoFailed || e.Err == nil {
		t.Fatalf("event = %+v", e)
	}
	snap := s.Snapshot()
	if snap.OldestTaskTime != nil || snap.RunningTasksCount != 0 || snap.TimeSinceOldest != "" {
		t.Fatalf("snapshot not reset: %+v", snap)
	}
	if snap.LastError != "backend unavailable" {
		t.Fatalf("LastError = %q", snap.LastError)
	}
}

func TestRefreshCoalesces(t *testing.T) {
	t.Parallel()
	f := &fakeFetcher{entered: make(chan struct{}, 1), gate: make(chan struct{})}
	s := newService(f, nil, time.Hour)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop(context.Background())

	select {
	case <-f.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("initial fetch not started")
	}
	if err := s.Refresh(context.Background()); !errors.Is(err, ErrInFlight) {
		t.Fatalf("Refresh = %v, want ErrInFlight", err)
	}
	if n := f.calls.Load(); n != 1 {
		t.Fatalf("calls = %d, want 1", n)
	}
	close(f.gate)
}

func TestStopDiscardsInFlight(t *testing.T) {
	t.Parallel()
	f := &fakeFetcher{info: infoWithOldest(time.Minute, 1), entered: make(chan struct{}, 1), gate: make(chan struct{})}
	bus := eventbus.New()
	ch, unsub := bus.Subscribe(4)
	defer unsub()

	s := newService(f, bus, time.Hour)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-f.entered

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if snap := s.Snapshot(); !snap.UpdatedAt.IsZero() {
		t.Fatalf("snapshot updated after stop: %+v", snap)
	}
	select {
	case e := <-ch:
		t.Fatalf("unexpected event after stop: %+v", e)
	default:
	}
	if err := s.Refresh(context.Background()); !errors.Is(err, ErrStopped) {
		t.Fatalf("Refresh after stop = %v, want ErrStopped", err)
	}
}

func TestPeriodicTicks(t *testing.T) {
	t.Parallel()
	f := &fakeFetcher{info: model.TasksInfo{RunningTasksCount: 1}}
	s := newService(f, nil, time.Second)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop(context.Background())

	deadline := time.Now().Add(4 * time.Second)
	for f.calls.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("calls = %d after 4s, want >= 2", f.calls.Load())
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestApplyChangesInterval(t *testing.T) {
	t.Parallel()
	s := newService(&fakeFetcher{}, nil, time.Hour)
	if err := s.Apply(Config{Interval: time.Minute}); err != nil {
		t.Fatalf("Apply while stopped: %v", err)
	}
	if got := s.Interval(); got != time.Minute {
		t.Fatalf("Interval = %v", got)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop(context.Background())
	if err := s.Apply(Config{}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := s.Interval(); got != DefaultInterval {
		t.Fatalf("Interval = %v, want default", got)
	}
}
