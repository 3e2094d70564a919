package cluster

import (
	"context"
	"fmt"
	"io"

	"github.com/go-sif/tablegen"
	"github.com/go-sif/tablegen/errors"
	"github.com/go-sif/tablegen/shard"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// AggregatorResult is reported exactly once by an aggregator when it stops
type AggregatorResult struct {
	NumInstances int
	NumShards    int
	Err          error
}

// aggregator rolls the Instances pushed by every worker into shard files. The actor goroutine
// started by run owns the shard buffer exclusively; Push handlers only forward into the inbox.
type aggregator struct {
	numWorkers int
	shardSize  int
	epochPath  string
	fs         afero.Fs
	compressor shard.Compressor
	logger     *zap.Logger

	inbox   chan *Envelope
	results chan AggregatorResult
	stopped chan struct{}

	// owned by the actor
	buf          *shard.Buffer
	numInstances int
	numShards    int
}

func createAggregator(numWorkers int, epochPath string, fs afero.Fs, compressor shard.Compressor, opts *NodeOptions, logger *zap.Logger) *aggregator {
	return &aggregator{
		numWorkers: numWorkers,
		shardSize:  opts.ShardSize,
		epochPath:  epochPath,
		fs:         fs,
		compressor: compressor,
		logger:     logger,
		inbox:      make(chan *Envelope, opts.InboxSize),
		results:    make(chan AggregatorResult, 1),
		stopped:    make(chan struct{}),
		buf:        shard.NewBuffer(),
	}
}

// Push receives the Envelopes of a single worker and forwards them to the actor in stream order
func (a *aggregator) Push(stream grpc.ServerStream) error {
	var count int64
	for {
		env := &Envelope{}
		err := stream.RecvMsg(env)
		if err == io.EOF {
			return stream.SendMsg(&Ack{Count: count})
		} else if err != nil {
			return err
		}
		count++
		select {
		case a.inbox <- env:
		case <-a.stopped:
			return fmt.Errorf("aggregator has stopped")
		}
	}
}

// run is the actor loop. It returns once every worker has sent its sentinel, or on the first error.
func (a *aggregator) run(ctx context.Context) {
	defer close(a.stopped)
	finished := 0
	for finished < a.numWorkers {
		select {
		case env := <-a.inbox:
			if env.EndOfStream {
				finished++
				a.logger.Debug("worker stream finished", zap.Int("finished", finished), zap.Int("workers", a.numWorkers))
				continue
			}
			if err := a.accept(env); err != nil {
				a.results <- AggregatorResult{Err: err}
				return
			}
		case <-ctx.Done():
			a.results <- AggregatorResult{Err: ctx.Err()}
			return
		}
	}
	// flush whatever remains, regardless of size
	if a.buf.Len() > 0 {
		if err := a.flush(); err != nil {
			a.results <- AggregatorResult{Err: err}
			return
		}
	}
	a.results <- AggregatorResult{NumInstances: a.numInstances, NumShards: a.numShards}
}

func (a *aggregator) accept(env *Envelope) error {
	inst := &tablegen.Instance{}
	if _, err := inst.UnmarshalMsg(env.Payload); err != nil {
		return fmt.Errorf("unable to decode instance: %w", err)
	}
	// a mismatch would shift the labels of every later Instance in the shard
	if len(inst.MaskedLMPositions) != len(inst.MaskedLMLabelIDs) {
		return errors.MalformedInstanceError{Positions: len(inst.MaskedLMPositions), Labels: len(inst.MaskedLMLabelIDs)}
	}
	a.buf.Append(inst)
	a.numInstances++
	if a.buf.Len() >= a.shardSize {
		return a.flush()
	}
	return nil
}

func (a *aggregator) flush() error {
	path := shard.FileName(a.epochPath, a.numShards)
	if err := shard.WriteFile(a.fs, path, a.buf, a.compressor); err != nil {
		return err
	}
	a.logger.Info("wrote shard", zap.String("path", path), zap.Int("instances", a.buf.Len()))
	a.buf.Reset()
	a.numShards++
	return nil
}
