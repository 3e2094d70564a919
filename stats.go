package tablegen

import "time"

// RuntimeStatistics facilitates the retrieval of statistics about a running epoch
type RuntimeStatistics interface {
	// GetStartTime returns the start time of the epoch
	GetStartTime() time.Time
	// GetRuntime returns the running time of the epoch
	GetRuntime() time.Duration
	// GetNumExamplesProcessed returns the number of Examples workers have reported as processed
	GetNumExamplesProcessed() int64
	// GetNumWorkersFinished returns the number of workers which have finished their partition
	GetNumWorkersFinished() int
	// GetExamplesPerSecond returns the average processing rate since the epoch started
	GetExamplesPerSecond() float64
}
