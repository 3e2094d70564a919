package cluster

import (
	"fmt"
	"runtime"
	"time"

	"github.com/go-sif/tablegen/sampler"
	"github.com/go-sif/tablegen/shard"
)

// NodeRole describes the intended role of a process
type NodeRole = string

const (
	// CoordinatorRole indicates that a process should supervise an epoch, and host its aggregator
	CoordinatorRole NodeRole = "coordinator"
	// WorkerRole indicates that a process should turn a partition of Examples into Instances
	WorkerRole NodeRole = "worker"
)

// Default listener addresses
const (
	DefaultInstanceAddr = "127.0.0.1:15566"
	DefaultStatusAddr   = "127.0.0.1:15567"
)

// NodeOptions configure the coordinator, aggregator and workers of an epoch
type NodeOptions struct {
	InstanceAddr           string        // address the aggregator binds to. Use port 0 for an ephemeral port.
	StatusAddr             string        // address the status and log services bind to
	NumWorkers             int           // number of workers. Defaults to runtime.NumCPU() - WorkerReserve.
	WorkerReserve          *int          // CPUs left free when NumWorkers is defaulted. Defaults to 2.
	WorkerJoinTimeout      time.Duration // how long the Coordinator should wait for Workers to register
	WorkerJoinRetries      int           // how many times a Worker should retry connecting to the Coordinator (at one second intervals)
	RPCTimeout             time.Duration // timeout for dialing and unary exchanges
	ShardSize              int           // number of Instances per shard file
	InboxSize              int           // capacity of the aggregator's inbox
	HeartbeatInterval      int           // number of successfully processed Examples between heartbeats
	ProgressLogInterval    time.Duration // how often the Coordinator logs progress
	Compression            string        // compression for shard arrays (none, lz4 or zstd)
	ContextSampleStrategy  string        // context sampling strategy used by workers
	MaxContextLength       int           // upper bound on the length of sampled context windows
	DebugSampleProbability float64       // probability that an Instance is written to the debug sample file
	Seed                   int64         // base seed for worker random sources
}

// CloneNodeOptions makes a copy of a NodeOptions
func CloneNodeOptions(opts *NodeOptions) *NodeOptions {
	clone := *opts
	if opts.WorkerReserve != nil {
		reserve := *opts.WorkerReserve
		clone.WorkerReserve = &reserve
	}
	return &clone
}

func ensureDefaultNodeOptionsValues(opts *NodeOptions) error {
	// default certain options if not supplied
	if len(opts.InstanceAddr) == 0 {
		opts.InstanceAddr = DefaultInstanceAddr
	}
	if len(opts.StatusAddr) == 0 {
		opts.StatusAddr = DefaultStatusAddr
	}
	if opts.WorkerReserve == nil {
		reserve := 2
		opts.WorkerReserve = &reserve
	}
	if opts.WorkerJoinTimeout == 0 {
		opts.WorkerJoinTimeout = 30 * time.Second
	}
	if opts.WorkerJoinRetries == 0 {
		opts.WorkerJoinRetries = 5
	}
	if opts.RPCTimeout == 0 {
		opts.RPCTimeout = 5 * time.Second
	}
	if opts.ShardSize == 0 {
		opts.ShardSize = 3000000
	}
	if opts.InboxSize == 0 {
		opts.InboxSize = 4096
	}
	if opts.HeartbeatInterval == 0 {
		opts.HeartbeatInterval = 5000
	}
	if opts.ProgressLogInterval == 0 {
		opts.ProgressLogInterval = 10 * time.Second
	}
	if len(opts.Compression) == 0 {
		opts.Compression = shard.CompressionNone
	}
	if len(opts.ContextSampleStrategy) == 0 {
		opts.ContextSampleStrategy = sampler.Nearest
	}
	if opts.MaxContextLength == 0 {
		opts.MaxContextLength = 256
	}
	if opts.DebugSampleProbability == 0 {
		opts.DebugSampleProbability = 0.05
	}
	// fail if certain options are invalid
	if opts.NumWorkers < 0 || *opts.WorkerReserve < 0 {
		return fmt.Errorf("NodeOptions.NumWorkers and WorkerReserve must not be negative")
	}
	if opts.ShardSize < 0 || opts.InboxSize < 0 || opts.HeartbeatInterval < 0 {
		return fmt.Errorf("NodeOptions.ShardSize, InboxSize and HeartbeatInterval must be positive")
	}
	return sampler.ValidateStrategy(opts.ContextSampleStrategy)
}

// numWorkers returns the number of workers an epoch should run with
func (o *NodeOptions) numWorkers() int {
	if o.NumWorkers > 0 {
		return o.NumWorkers
	}
	n := runtime.NumCPU()
	if o.WorkerReserve != nil {
		n -= *o.WorkerReserve
	}
	if n < 1 {
		n = 1
	}
	return n
}
