// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SAVIKA Contributors

package intake

import (
	"context"
	"sync"
)

// FormState is the lifecycle state of a Form.
type FormState int

// Form states.
const (
	FormIdle FormState = iota
	FormSubmitting
	FormDetached
)

func (s FormState) String() string {
	switch s {
	case FormIdle:
		return "idle"
	case FormSubmitting:
		return "submitting"
	case FormDetached:
		return "detached"
	default:
		return "unknown"
	}
}

// Submission runs one validated submission, usually a Service method bound to
// a form snapshot.
type Submission func(ctx context.Context) Result

// Form allows one submission in flight at a time for a single form instance.
// Results are delivered to the callback from the submitting goroutine unless
// the form has been detached by then.
type Form struct {
	onResult func(Result)

	mu       sync.Mutex
	busy     bool
	detached bool
	last     *Result
	wg       sync.WaitGroup
}

// NewForm creates a Form delivering results to onResult.
func NewForm(onResult func(Result)) *Form {
	if onResult == nil {
		onResult = func(Result) {}
	}
	return &Form{onResult: onResult}
}

// Submit starts run in the background. It returns false, and does nothing,
// when a submission is already in flight or the form is detached.
func (f *Form) Submit(ctx context.Context, run Submission) bool {
	f.mu.Lock()
	if f.busy || f.detached {
		f.mu.Unlock()
		return false
	}
	f.busy = true
	f.wg.Add(1)
	f.mu.Unlock()

	go func() {
		defer f.wg.Done()
		result := run(ctx)

		f.mu.Lock()
		f.busy = false
		if f.detached {
			f.mu.Unlock()
			return
		}
		f.last = &result
		f.mu.Unlock()

		f.onResult(result)
	}()
	return true
}

// State reports the current state.
func (f *Form) State() FormState {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case f.detached:
		return FormDetached
	case f.busy:
		return FormSubmitting
	default:
		return FormIdle
	}
}

// Last returns the most recently delivered result.
func (f *Form) Last() (Result, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.last == nil {
		return Result{}, false
	}
	return *f.last, true
}

// Detach marks the form as torn down. An outstanding submission keeps running
// but its result is dropped on arrival, and further submits are ignored.
func (f *Form) Detach() {
	f.mu.Lock()
	f.detached = true
	f.mu.Unlock()
}

// Wait blocks until the outstanding submission, if any, has finished.
func (f *Form) Wait() {
	f.wg.Wait()
}
