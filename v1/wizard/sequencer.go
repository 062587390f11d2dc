// Package wizard implements the multi-step form state machine behind the
// transaction and offer wizards.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

var (
	// ErrAlreadySubmitted is returned by Submit on a sequencer that already succeeded
	ErrAlreadySubmitted = errors.New("wizard already submitted")
	// ErrNoSteps is returned by New when called without steps
	ErrNoSteps = errors.New("wizard needs at least one step")
	// ErrUnknownStep is returned for a step id that is not part of the wizard
	ErrUnknownStep = errors.New("unknown wizard step")
)

// FieldValidator checks one present (non-empty) field value
type FieldValidator func(value interface{}) error

// Step is one screen of a wizard
type Step struct {
	ID       string
	Title    string
	Required []string
	// Validators run only for fields that are present
	Validators map[string]FieldValidator
}

// ValidationError lists the fields that keep a step from validating
type ValidationError struct {
	StepID string
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + " " + e.Fields[name]
	}
	return fmt.Sprintf("step %q is invalid: %s", e.StepID, strings.Join(parts, "; "))
}

// SubmitFunc persists the collected data and returns the id of what it created
type SubmitFunc func(ctx context.Context, data map[string]map[string]interface{}) (string, error)

// State is the persisted form of a Sequencer
type State struct {
	CurrentStep   int
	CollectedData map[string]map[string]interface{}
	Submitted     bool
	ResultID      string
}

// Sequencer tracks the current step and the data collected so far.
// It is not safe for concurrent use.
type Sequencer struct {
	steps     []Step
	index     map[string]int
	current   int
	data      map[string]map[string]interface{}
	submitted bool
	resultID  string
}

// New returns a sequencer positioned on the first step
func New(steps ...Step) (*Sequencer, error) {
	if len(steps) == 0 {
		return nil, ErrNoSteps
	}

	index := make(map[string]int, len(steps))
	data := make(map[string]map[string]interface{}, len(steps))
	for i, step := range steps {
		if step.ID == "" {
			return nil, fmt.Errorf("step %d has no id", i)
		}
		if _, dup := index[step.ID]; dup {
			return nil, fmt.Errorf("duplicate step id %q", step.ID)
		}
		index[step.ID] = i
		data[step.ID] = map[string]interface{}{}
	}

	return &Sequencer{steps: steps, index: index, data: data}, nil
}

// Restore rebuilds a sequencer from a saved state.
// Data for steps that no longer exist is dropped and the index is clamped.
func Restore(steps []Step, state State) (*Sequencer, error) {
	s, err := New(steps...)
	if err != nil {
		return nil, err
	}
	for id, values := range state.CollectedData {
		if _, ok := s.index[id]; !ok {
			continue
		}
		for k, v := range values {
			s.data[id][k] = v
		}
	}
	s.current = clamp(state.CurrentStep, 0, len(steps)-1)
	s.submitted = state.Submitted
	s.resultID = state.ResultID
	return s, nil
}

// State snapshots the sequencer for persistence
func (s *Sequencer) State() State {
	return State{
		CurrentStep:   s.current,
		CollectedData: s.Data(),
		Submitted:     s.submitted,
		ResultID:      s.resultID,
	}
}

// Steps returns the ordered steps
func (s *Sequencer) Steps() []Step {
	return s.steps
}

// Current returns the zero-based index of the current step
func (s *Sequencer) Current() int {
	return s.current
}

// CurrentStep returns the step the user is on
func (s *Sequencer) CurrentStep() Step {
	return s.steps[s.current]
}

// IsFirst reports whether the sequencer is on the first step
func (s *Sequencer) IsFirst() bool {
	return s.current == 0
}

// IsLast reports whether the sequencer is on the last step
func (s *Sequencer) IsLast() bool {
	return s.current == len(s.steps)-1
}

// Submitted reports whether Submit has succeeded
func (s *Sequencer) Submitted() bool {
	return s.submitted
}

// ResultID is the id returned by the successful SubmitFunc
func (s *Sequencer) ResultID() string {
	return s.resultID
}

// Data returns a copy of the collected data, one map per step
func (s *Sequencer) Data() map[string]map[string]interface{} {
	out := make(map[string]map[string]interface{}, len(s.data))
	for id, values := range s.data {
		cp := make(map[string]interface{}, len(values))
		for k, v := range values {
			cp[k] = v
		}
		out[id] = cp
	}
	return out
}

// Next advances one step if the current step validates.
// On the last step it is a no-op.
func (s *Sequencer) Next() error {
	if fields := s.ValidateStep(s.current); len(fields) > 0 {
		return &ValidationError{StepID: s.steps[s.current].ID, Fields: fields}
	}
	if !s.IsLast() {
		s.current++
	}
	return nil
}

// Previous goes back one step. On the first step it is a no-op.
func (s *Sequencer) Previous() {
	if s.current > 0 {
		s.current--
	}
}

// UpdateStepData shallow-merges partial into the step's data.
// Keys in partial replace existing keys; other keys are kept.
func (s *Sequencer) UpdateStepData(stepID string, partial map[string]interface{}) error {
	slot, ok := s.data[stepID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStep, stepID)
	}
	for k, v := range partial {
		slot[k] = v
	}
	return nil
}

// ValidateStep returns the field errors for step i, or nil when it is valid
func (s *Sequencer) ValidateStep(i int) map[string]string {
	if i < 0 || i >= len(s.steps) {
		return map[string]string{"step": "does not exist"}
	}
	step := s.steps[i]
	values := s.data[step.ID]
	fields := make(map[string]string)

	for _, name := range step.Required {
		if isEmpty(values[name]) {
			fields[name] = "is required"
		}
	}
	for name, validate := range step.Validators {
		if _, failed := fields[name]; failed {
			continue
		}
		value, present := values[name]
		if !present || isEmpty(value) {
			continue
		}
		if err := validate(value); err != nil {
			fields[name] = err.Error()
		}
	}

	if len(fields) == 0 {
		return nil
	}
	return fields
}

// FirstInvalid returns the validation error of the earliest invalid step, or nil
func (s *Sequencer) FirstInvalid() *ValidationError {
	for i, step := range s.steps {
		if fields := s.ValidateStep(i); len(fields) > 0 {
			return &ValidationError{StepID: step.ID, Fields: fields}
		}
	}
	return nil
}

// Submit hands the collected data to fn once every step validates.
// When fn fails the sequencer is left exactly as it was so the user can retry.
func (s *Sequencer) Submit(ctx context.Context, fn SubmitFunc) (string, error) {
	if s.submitted {
		return s.resultID, ErrAlreadySubmitted
	}
	if verr := s.FirstInvalid(); verr != nil {
		return "", verr
	}

	resultID, err := fn(ctx, s.Data())
	if err != nil {
		return "", err
	}

	s.submitted = true
	s.resultID = resultID
	return resultID, nil
}

// isEmpty treats nil, blank strings, empty slices and empty maps as missing.
// Numbers and booleans, including zero and false, are present.
func isEmpty(v interface{}) bool {
	if v == nil {
		return true
	}
	if str, ok := v.(string); ok {
		return strings.TrimSpace(str) == ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Ptr, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
