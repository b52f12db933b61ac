package eventbus

import (
	"sync"
	"time"
)

// Event types published by the console.
const (
	TasksInfoUpdated = "tasks_info.updated"
	TasksInfoFailed  = "tasks_info.failed"
	SettingsSaved    = "settings.saved"
	VariablesSaved   = "variables.saved"
	StatusesReset    = "statuses.reset"
	PipelineStarted  = "pipeline.started"
	PipelineStopped  = "pipeline.stopped"
	ConfigReloaded   = "config.reloaded"
)

// Event is an in-memory signal. Data should stay small.
//
// Publish never blocks: subscribers get buffered channels and a slow
// subscriber drops events.
type Event struct {
	Type string
	Time time.Time
	Data any
	Err  error
}

type Bus interface {
	Publish(e Event)
	// Subscribe registers a listener. With no types, every event is delivered.
	Subscribe(buffer int, types ...string) (ch <-chan Event, unsubscribe func())
}

func New() Bus {
	return &memBus{subs: map[uint64]*sub{}}
}

type sub struct {
	ch    chan Event
	types map[string]struct{}
}

func (s *sub) wants(t string) bool {
	if len(s.types) == 0 {
		return true
	}
	_, ok := s.types[t]
	return ok
}

type memBus struct {
	mu   sync.RWMutex
	subs map[uint64]*sub
	seq  uint64
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	// Held for read across sends so unsubscribe cannot close a channel
	// mid-send. Sends are non-blocking, so this is short.
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		if !s.wants(e.Type) {
			continue
		}
		select {
		case s.ch <- e:
		default:
		}
	}
}

func (b *memBus) Subscribe(buffer int, types ...string) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	s := &sub{ch: make(chan Event, buffer)}
	if len(types) > 0 {
		s.types = make(map[string]struct{}, len(types))
		for _, t := range types {
			s.types[t] = struct{}{}
		}
	}

	b.mu.Lock()
	b.seq++
	id := b.seq
	b.subs[id] = s
	b.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			close(s.ch)
			b.mu.Unlock()
		})
	}
}

// Nop drops everything.
type Nop struct{}

func (Nop) Publish(Event) {}

func (Nop) Subscribe(int, ...string) (<-chan Event, func()) {
	ch := make(chan Event)
	close(ch)
	return ch, func() {}
}
