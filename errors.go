package cres

import (
	"errors"
	"fmt"
)

var (
	// ErrWeightNotConserved reports a cell whose weight sum changed during
	// resampling beyond floating-point tolerance.
	ErrWeightNotConserved = errors.New("cres: cell weight not conserved")

	// ErrAlreadyNormalized is returned when a Normalizer is applied twice.
	ErrAlreadyNormalized = errors.New("cres: weights already normalized")

	// ErrInvalidWeight reports an input event with a NaN or infinite weight.
	ErrInvalidWeight = errors.New("cres: invalid event weight")
)

// ConfigError reports an invalid option. It is detected before any event is
// processed.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("cres: invalid %s: %s", e.Field, e.Reason)
}

// ContractViolationError reports a distance function that returned NaN or a
// negative value. It aborts the run.
type ContractViolationError struct {
	EventA, EventB int
	Value          float64
}

func (e *ContractViolationError) Error() string {
	return fmt.Sprintf("cres: distance between events %d and %d is %v, must be a non-negative number",
		e.EventA, e.EventB, e.Value)
}

// CellWarning is a recoverable problem attached to one cell.
type CellWarning struct {
	Partition int
	Seed      int // event ID of the cell seed
	Message   string
}

func (w CellWarning) String() string {
	return fmt.Sprintf("partition %d, cell seeded by event %d: %s", w.Partition, w.Seed, w.Message)
}
