package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrIndexOutOfRange is returned by row operations with a bad index.
var ErrIndexOutOfRange = errors.New("index out of range")

// Options configures a List.
type Options[T any] struct {
	// New builds the blank record appended by Add.
	New func() T
	// Clone deep-copies a record. Defaults to a plain value copy, which is
	// enough for records made of scalar fields.
	Clone func(T) T
	// ValidateNew checks rows created through Add. Loaded rows are the
	// backend's and are not re-validated.
	ValidateNew func(T) error
}

type row[T any] struct {
	val   T
	fresh bool
}

// List keeps an editable, ordered view of records in sync with a backing
// slice (the canonical copy that gets persisted).
//
// Structural mutations always commit pending edits into the backing slice
// first, then mutate the backing slice, then rebuild the view from it.
// Removing a row directly from the view would lose sibling edits.
type List[T any] struct {
	mu      sync.Mutex
	opt     Options[T]
	backing []row[T]
	view    []row[T]
}

func New[T any](opt Options[T]) *List[T] {
	if opt.New == nil {
		opt.New = func() T {
			var zero T
			return zero
		}
	}
	if opt.Clone == nil {
		opt.Clone = func(v T) T { return v }
	}
	return &List[T]{opt: opt}
}

// Load replaces the list wholesale, discarding unsaved edits.
func (l *List[T]) Load(records []T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.backing = make([]row[T], len(records))
	for i, r := range records {
		l.backing[i] = row[T]{val: l.opt.Clone(r)}
	}
	l.rebuildLocked()
}

// Add appends a blank record to the view and returns its index.
func (l *List[T]) Add() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.view = append(l.view, row[T]{val: l.opt.New(), fresh: true})
	return len(l.view) - 1
}

// Update edits row i of the view in place.
func (l *List[T]) Update(i int, fn func(*T)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i < 0 || i >= len(l.view) {
		return fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, i, len(l.view))
	}
	fn(&l.view[i].val)
	return nil
}

// RemoveAt deletes row i: pending edits are committed first, the row is
// removed from the backing slice, and the view is rebuilt from it.
func (l *List[T]) RemoveAt(i int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i < 0 || i >= len(l.view) {
		return fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, i, len(l.view))
	}
	l.commitLocked()
	l.backing = append(l.backing[:i], l.backing[i+1:]...)
	l.rebuildLocked()
	return nil
}

// Commit copies the current view into the backing slice.
func (l *List[T]) Commit() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.commitLocked()
}

// Validate checks every user-created row.
func (l *List[T]) Validate() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.validateLocked()
}

// Save validates, commits and hands a copy of the backing slice to persist
// on its own goroutine. The returned channel receives exactly one result.
func (l *List[T]) Save(ctx context.Context, persist func(context.Context, []T) error) <-chan error {
	out := make(chan error, 1)

	l.mu.Lock()
	if err := l.validateLocked(); err != nil {
		l.mu.Unlock()
		out <- err
		return out
	}
	l.commitLocked()
	records := l.valuesLocked(l.backing)
	l.mu.Unlock()

	go func() {
		out <- persist(ctx, records)
	}()
	return out
}

// Values returns a copy of the editable view.
func (l *List[T]) Values() []T {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.valuesLocked(l.view)
}

// Backing returns a copy of the committed records.
func (l *List[T]) Backing() []T {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.valuesLocked(l.backing)
}

func (l *List[T]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.view)
}

func (l *List[T]) commitLocked() {
	l.backing = l.copyRows(l.view)
}

func (l *List[T]) rebuildLocked() {
	l.view = l.copyRows(l.backing)
}

func (l *List[T]) copyRows(src []row[T]) []row[T] {
	out := make([]row[T], len(src))
	for i, r := range src {
		out[i] = row[T]{val: l.opt.Clone(r.val), fresh: r.fresh}
	}
	return out
}

func (l *List[T]) valuesLocked(src []row[T]) []T {
	out := make([]T, len(src))
	for i, r := range src {
		out[i] = l.opt.Clone(r.val)
	}
	return out
}

func (l *List[T]) validateLocked() error {
	if l.opt.ValidateNew == nil {
		return nil
	}
	for i, r := range l.view {
		if !r.fresh {
			continue
		}
		if err := l.opt.ValidateNew(r.val); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	return nil
}
