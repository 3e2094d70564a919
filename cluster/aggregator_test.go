package cluster

import (
	"context"
	"testing"

	"github.com/go-sif/tablegen"
	tgerrors "github.com/go-sif/tablegen/errors"
	"github.com/go-sif/tablegen/shard"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func createTestEnvelope(t *testing.T, id int) *Envelope {
	inst := &tablegen.Instance{
		TokenIDs:          []int{2, id, 3},
		SegmentALength:    2,
		MaskedLMPositions: []int{1},
		MaskedLMLabelIDs:  []int{id},
	}
	payload, err := inst.MarshalMsg(nil)
	require.Nil(t, err)
	return &Envelope{Payload: payload}
}

func TestAggregatorFlushesEveryShardSize(t *testing.T) {
	defer goleak.VerifyNone(t)
	fs := afero.NewMemMapFs()
	compressor, err := shard.NewCompressor(shard.CompressionLZ4)
	require.Nil(t, err)
	defer compressor.Close()
	opts := &NodeOptions{ShardSize: 4, InboxSize: 16}
	agg := createAggregator(2, "/out/train/epoch_0", fs, compressor, opts, zap.NewNop())
	go agg.run(context.Background())

	// two interleaved workers, 10 instances in total
	for i := 0; i < 10; i++ {
		agg.inbox <- createTestEnvelope(t, 100+i)
		if i == 6 {
			agg.inbox <- &Envelope{EndOfStream: true}
		}
	}
	agg.inbox <- &Envelope{EndOfStream: true}
	result := <-agg.results
	require.Nil(t, result.Err)
	require.Equal(t, 10, result.NumInstances)
	require.Equal(t, 3, result.NumShards)

	seen := 0
	for i, expected := range []int{4, 4, 2} {
		buf, err := shard.ReadFile(fs, shard.FileName("/out/train/epoch_0", i))
		require.Nil(t, err)
		require.Equal(t, expected, buf.Len())
		for j := 0; j < buf.Len(); j++ {
			require.Equal(t, []int{2, 100 + seen, 3}, buf.Instance(j).TokenIDs)
			seen++
		}
	}
	exists, err := afero.Exists(fs, shard.FileName("/out/train/epoch_0", 3))
	require.Nil(t, err)
	require.False(t, exists)
}

func TestAggregatorExactMultipleWritesNoEmptyShard(t *testing.T) {
	fs := afero.NewMemMapFs()
	compressor, err := shard.NewCompressor(shard.CompressionNone)
	require.Nil(t, err)
	agg := createAggregator(1, "/out/e", fs, compressor, &NodeOptions{ShardSize: 5, InboxSize: 16}, zap.NewNop())
	go agg.run(context.Background())
	for i := 0; i < 10; i++ {
		agg.inbox <- createTestEnvelope(t, i)
	}
	agg.inbox <- &Envelope{EndOfStream: true}
	result := <-agg.results
	require.Nil(t, result.Err)
	require.Equal(t, 2, result.NumShards)
}

func TestAggregatorEmptyEpoch(t *testing.T) {
	fs := afero.NewMemMapFs()
	compressor, err := shard.NewCompressor(shard.CompressionNone)
	require.Nil(t, err)
	agg := createAggregator(3, "/out/e", fs, compressor, &NodeOptions{ShardSize: 5, InboxSize: 16}, zap.NewNop())
	go agg.run(context.Background())
	for i := 0; i < 3; i++ {
		agg.inbox <- &Envelope{EndOfStream: true}
	}
	result := <-agg.results
	require.Nil(t, result.Err)
	require.Equal(t, 0, result.NumInstances)
	require.Equal(t, 0, result.NumShards)
}

func TestAggregatorCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)
	compressor, err := shard.NewCompressor(shard.CompressionNone)
	require.Nil(t, err)
	agg := createAggregator(2, "/out/e", afero.NewMemMapFs(), compressor, &NodeOptions{ShardSize: 5, InboxSize: 16}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go agg.run(ctx)
	agg.inbox <- &Envelope{EndOfStream: true}
	cancel()
	result := <-agg.results
	require.Equal(t, context.Canceled, result.Err)
	<-agg.stopped
}

func TestAggregatorRejectsBadPayload(t *testing.T) {
	compressor, err := shard.NewCompressor(shard.CompressionNone)
	require.Nil(t, err)
	agg := createAggregator(1, "/out/e", afero.NewMemMapFs(), compressor, &NodeOptions{ShardSize: 5, InboxSize: 16}, zap.NewNop())
	go agg.run(context.Background())
	agg.inbox <- &Envelope{Payload: []byte{0xc1}}
	result := <-agg.results
	require.Error(t, result.Err)
}

func TestAggregatorRejectsUnlabelledPositions(t *testing.T) {
	defer goleak.VerifyNone(t)
	fs := afero.NewMemMapFs()
	compressor, err := shard.NewCompressor(shard.CompressionNone)
	require.Nil(t, err)
	agg := createAggregator(1, "/out/e", fs, compressor, &NodeOptions{ShardSize: 2, InboxSize: 16}, zap.NewNop())
	go agg.run(context.Background())
	agg.inbox <- createTestEnvelope(t, 7)
	inst := &tablegen.Instance{
		TokenIDs:          []int{2, 8, 9, 3},
		SegmentALength:    2,
		MaskedLMPositions: []int{1, 2},
		MaskedLMLabelIDs:  []int{8},
	}
	payload, err := inst.MarshalMsg(nil)
	require.Nil(t, err)
	agg.inbox <- &Envelope{Payload: payload}
	result := <-agg.results
	require.Equal(t, tgerrors.MalformedInstanceError{Positions: 2, Labels: 1}, result.Err)
	<-agg.stopped
	// the shard holding the malformed Instance is never written
	exists, err := afero.Exists(fs, shard.FileName("/out/e", 0))
	require.Nil(t, err)
	require.False(t, exists)
}
