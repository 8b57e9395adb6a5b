package availability

import (
	"context"
	"strings"
	"sync"
	"time"
)

const DefaultWindow = 500 * time.Millisecond

// CheckFunc performs one availability lookup.
type CheckFunc func(ctx context.Context, value string) Availability

// State is what a form shows for the field. Availability is empty until the
// check for Value has answered.
type State struct {
	Value        string
	Availability Availability
	Pending      bool
}

// Debouncer delays checks until input has been quiet for the window and
// drops answers that arrive for superseded input. In-flight checks are
// never cancelled; their results are discarded when they land.
type Debouncer struct {
	check    CheckFunc
	window   time.Duration
	onChange func(State)

	mu    sync.Mutex
	seq   uint64
	timer *time.Timer
	state State
	wg    sync.WaitGroup
}

type DebouncerOption func(*Debouncer)

func WithWindow(d time.Duration) DebouncerOption {
	return func(db *Debouncer) {
		db.window = d
	}
}

// WithOnChange registers a callback for every state change. It runs outside
// the debouncer's lock.
func WithOnChange(fn func(State)) DebouncerOption {
	return func(db *Debouncer) {
		db.onChange = fn
	}
}

func NewDebouncer(check CheckFunc, opts ...DebouncerOption) *Debouncer {
	db := &Debouncer{check: check, window: DefaultWindow}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// Input records a new field value. Any check still waiting for its quiet
// period is cancelled.
func (db *Debouncer) Input(value string) {
	db.mu.Lock()
	db.seq++
	seq := db.seq
	if db.timer != nil && db.timer.Stop() {
		db.wg.Done()
	}
	db.timer = nil

	if strings.TrimSpace(value) == "" {
		db.state = State{Value: value}
	} else {
		db.state = State{Value: value, Pending: true}
		db.wg.Add(1)
		db.timer = time.AfterFunc(db.window, func() {
			defer db.wg.Done()
			db.run(seq, value)
		})
	}
	st := db.state
	db.mu.Unlock()

	db.notify(st)
}

func (db *Debouncer) run(seq uint64, value string) {
	res := db.check(context.Background(), value)

	db.mu.Lock()
	if seq != db.seq {
		db.mu.Unlock()
		return
	}
	db.state = State{Value: value, Availability: res}
	st := db.state
	db.mu.Unlock()

	db.notify(st)
}

func (db *Debouncer) State() State {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.state
}

// Close cancels a waiting check and blocks until running checks return.
func (db *Debouncer) Close() {
	db.mu.Lock()
	if db.timer != nil && db.timer.Stop() {
		db.wg.Done()
	}
	db.timer = nil
	db.mu.Unlock()

	db.wg.Wait()
}

func (db *Debouncer) notify(st State) {
	if db.onChange != nil {
		db.onChange(st)
	}
}
