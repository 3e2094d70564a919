package errors

import (
	"fmt"
)

// UnsupportedStrategyError occurs when a context sampling strategy is not recognized
type UnsupportedStrategyError struct{ Strategy string }

// Error returns a textual representation of this UnsupportedStrategyError
func (e UnsupportedStrategyError) Error() string {
	return fmt.Sprintf("Unsupported context sample strategy %q", e.Strategy)
}

// MissingExampleError occurs when a TableStore does not contain an Example for an index
type MissingExampleError struct{ Index int }

// Error returns a textual representation of this MissingExampleError
func (e MissingExampleError) Error() string {
	return fmt.Sprintf("No example with index %d", e.Index)
}

// ShardOverflowError occurs when a value cannot be represented by the dtype of a shard array
type ShardOverflowError struct {
	Array string
	Value int
}

// Error returns a textual representation of this ShardOverflowError
func (e ShardOverflowError) Error() string {
	return fmt.Sprintf("Value %d does not fit in shard array %s", e.Value, e.Array)
}

// CorruptShardError occurs when a shard file fails validation while being read
type CorruptShardError struct {
	Path   string
	Reason string
}

// Error returns a textual representation of this CorruptShardError
func (e CorruptShardError) Error() string {
	return fmt.Sprintf("Shard %s is corrupt: %s", e.Path, e.Reason)
}

// WorkerExitError occurs when a worker stops before it has reported completion
type WorkerExitError struct {
	ID  string
	Err error
}

// Error returns a textual representation of this WorkerExitError
func (e WorkerExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("Worker %s exited before finishing its partition", e.ID)
	}
	return fmt.Sprintf("Worker %s exited before finishing its partition: %v", e.ID, e.Err)
}

// Unwrap returns the reason the worker exited, if any
func (e WorkerExitError) Unwrap() error {
	return e.Err
}

// ExampleError occurs when a single Example cannot be turned into Instances
type ExampleError struct {
	Index int
	Err   error
}

// Error returns a textual representation of this ExampleError
func (e ExampleError) Error() string {
	return fmt.Sprintf("Example %d failed: %v", e.Index, e.Err)
}

// Unwrap returns the underlying failure
func (e ExampleError) Unwrap() error {
	return e.Err
}

// MalformedInstanceError occurs when an Instance does not have one masked-LM label per masked position
type MalformedInstanceError struct {
	Positions int
	Labels    int
}

// Error returns a textual representation of this MalformedInstanceError
func (e MalformedInstanceError) Error() string {
	return fmt.Sprintf("Instance has %d masked positions but %d labels", e.Positions, e.Labels)
}
