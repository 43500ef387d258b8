package fluxion

import "reflect"

// Signal is a reactive value container: a mutable cell that records its
// readers. Reading a Signal inside a memo computation or a reaction run
// automatically subscribes that derivation to the signal's changes.
type Signal[T any] struct {
	rt *Runtime

	id   uint64
	name string

	obs observerList

	// value is the current signal value.
	value T

	// equal is the equality policy used to decide whether a write changed
	// the value. If nil, uses default equality checking.
	equal func(T, T) bool
}

// NewSignal creates a new signal with the given initial value.
func NewSignal[T any](rt *Runtime, initial T, opts ...Option) *Signal[T] {
	o := applyOptions(opts)
	return &Signal[T]{
		rt:    rt,
		id:    nextID(),
		name:  o.name,
		value: initial,
	}
}

// Get returns the current value and subscribes the current derivation.
// If called during a tracked run (memo computation or reaction execution),
// the innermost derivation will be notified when this signal changes.
// Outside any tracked run it is a pure read.
func (s *Signal[T]) Get() T {
	s.rt.lk.lock()
	defer s.rt.lk.unlock()

	s.rt.reportObserved(s)
	return s.value
}

// Peek returns the current value without subscribing.
// This is useful when you need to read a value without creating a dependency.
func (s *Signal[T]) Peek() T {
	s.rt.lk.lock()
	defer s.rt.lk.unlock()
	return s.value
}

// Set updates the signal's value and propagates to observers. If the new
// value is unchanged under the signal's equality policy the write is a
// no-op: nothing is notified. Otherwise the write opens an implicit
// transaction (or joins the enclosing one) and affected reactions run when
// the outermost transaction settles.
func (s *Signal[T]) Set(value T) {
	s.rt.lk.lock()
	defer s.rt.lk.unlock()

	if s.equals(s.value, value) {
		return
	}
	s.value = value

	s.rt.startBatch()
	s.rt.propagateChanged(&s.obs)
	s.rt.endBatch()
}

// Update atomically reads and updates the signal's value.
// The function receives the current value and returns the new value.
func (s *Signal[T]) Update(fn func(T) T) {
	s.rt.lk.lock()
	defer s.rt.lk.unlock()

	s.Set(fn(s.value))
}

// WithEquals returns the signal configured with a custom equality function.
// This is useful for custom types where reflect.DeepEqual is too expensive
// or has incorrect semantics.
func (s *Signal[T]) WithEquals(fn func(T, T) bool) *Signal[T] {
	s.equal = fn
	return s
}

// ID returns the unique identifier for this signal.
func (s *Signal[T]) ID() uint64 {
	return s.id
}

// Name returns the debug label, or a generated fallback.
func (s *Signal[T]) Name() string {
	if s.name != "" {
		return s.name
	}
	return fallbackName("signal", s.id)
}

// ObserverCount returns the number of derivations currently subscribed to
// this signal. Useful for structural inspection in tests.
func (s *Signal[T]) ObserverCount() int {
	s.rt.lk.lock()
	defer s.rt.lk.unlock()
	return s.obs.count()
}

// equals checks if two values are equal using the configured equality policy.
func (s *Signal[T]) equals(a, b T) bool {
	if s.equal != nil {
		return s.equal(a, b)
	}
	return defaultEquals(a, b)
}

// observable interface

func (s *Signal[T]) obsID() uint64 { return s.id }

func (s *Signal[T]) addObserver(d derivation) { s.obs.add(d) }

func (s *Signal[T]) removeObserver(d derivation) { s.obs.remove(d) }

// defaultEquals provides type-appropriate equality checking.
// Uses == for comparable types and reflect.DeepEqual for others.
func defaultEquals[T any](a, b T) bool {
	// Try to use == for comparable types
	// This is a type assertion that will succeed for comparable types
	switch av := any(a).(type) {
	case int:
		return av == any(b).(int)
	case int8:
		return av == any(b).(int8)
	case int16:
		return av == any(b).(int16)
	case int32:
		return av == any(b).(int32)
	case int64:
		return av == any(b).(int64)
	case uint:
		return av == any(b).(uint)
	case uint8:
		return av == any(b).(uint8)
	case uint16:
		return av == any(b).(uint16)
	case uint32:
		return av == any(b).(uint32)
	case uint64:
		return av == any(b).(uint64)
	case float32:
		return av == any(b).(float32)
	case float64:
		return av == any(b).(float64)
	case string:
		return av == any(b).(string)
	case bool:
		return av == any(b).(bool)
	default:
		// Fall back to reflect.DeepEqual for slices, maps, structs, etc.
		return reflect.DeepEqual(a, b)
	}
}
