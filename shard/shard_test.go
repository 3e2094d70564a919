package shard

import (
	"bytes"
	"testing"

	"github.com/go-sif/tablegen"
	"github.com/go-sif/tablegen/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func createTestInstances(n int) []*tablegen.Instance {
	res := make([]*tablegen.Instance, n)
	for i := range res {
		ids := []int{2, 100 + i, 200 + i, 3, 300 + i, 3}
		positions := []int{}
		labels := []int{}
		if i%2 == 0 {
			positions = []int{1, 4}
			labels = []int{100 + i, 300 + i}
		}
		res[i] = &tablegen.Instance{
			TokenIDs:          ids,
			SegmentALength:    4,
			MaskedLMPositions: positions,
			MaskedLMLabelIDs:  labels,
		}
	}
	return res
}

func TestBufferAppend(t *testing.T) {
	buf := NewBuffer()
	instances := createTestInstances(3)
	for _, inst := range instances {
		buf.Append(inst)
	}
	require.Equal(t, 3, buf.Len())
	require.Len(t, buf.Sequences, 18)
	require.Equal(t, [][2]int{{0, 6}, {6, 12}, {12, 18}}, buf.SequenceOffsets)
	require.Equal(t, [][2]int{{0, 2}, {2, 2}, {2, 4}}, buf.MaskedLMOffsets)
	for i, inst := range instances {
		require.Equal(t, inst, buf.Instance(i))
	}
	buf.Reset()
	require.Equal(t, 0, buf.Len())
	require.Empty(t, buf.Sequences)
}

func TestWriteReadFile(t *testing.T) {
	for _, compression := range []string{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(compression, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			buf := NewBuffer()
			instances := createTestInstances(50)
			for _, inst := range instances {
				buf.Append(inst)
			}
			c, err := NewCompressor(compression)
			require.Nil(t, err)
			defer c.Close()
			path := FileName("/out/train/epoch_0", 0)
			require.Equal(t, "/out/train/epoch_0.shard0.bin", path)
			require.Nil(t, WriteFile(fs, path, buf, c))

			exists, err := afero.Exists(fs, path+".tmp")
			require.Nil(t, err)
			require.False(t, exists)

			read, err := ReadFile(fs, path)
			require.Nil(t, err)
			require.Equal(t, 50, read.Len())
			for i, inst := range instances {
				require.Equal(t, inst, read.Instance(i))
			}
		})
	}
}

func TestWriteEmptyShard(t *testing.T) {
	fs := afero.NewMemMapFs()
	c, err := NewCompressor(CompressionLZ4)
	require.Nil(t, err)
	require.Nil(t, WriteFile(fs, "/empty.bin", NewBuffer(), c))
	read, err := ReadFile(fs, "/empty.bin")
	require.Nil(t, err)
	require.Equal(t, 0, read.Len())
}

func TestShardOverflow(t *testing.T) {
	buf := NewBuffer()
	buf.Append(&tablegen.Instance{TokenIDs: []int{1, 70000}, SegmentALength: 1})
	c, err := NewCompressor(CompressionNone)
	require.Nil(t, err)
	err = WriteFile(afero.NewMemMapFs(), "/overflow.bin", buf, c)
	require.Equal(t, errors.ShardOverflowError{Array: ArraySequences, Value: 70000}, err)
}

func TestReadCorruptShard(t *testing.T) {
	fs := afero.NewMemMapFs()
	buf := NewBuffer()
	buf.Append(&tablegen.Instance{TokenIDs: []int{0x1234, 0x5678}, SegmentALength: 1})
	c, err := NewCompressor(CompressionNone)
	require.Nil(t, err)
	require.Nil(t, WriteFile(fs, "/shard.bin", buf, c))

	data, err := afero.ReadFile(fs, "/shard.bin")
	require.Nil(t, err)
	idx := bytes.Index(data, []byte{0x34, 0x12, 0x78, 0x56})
	require.True(t, idx > 0)
	data[idx] = 0x35
	require.Nil(t, afero.WriteFile(fs, "/shard.bin", data, 0644))
	_, err = ReadFile(fs, "/shard.bin")
	require.IsType(t, errors.CorruptShardError{}, err)
	require.Contains(t, err.Error(), "checksum")

	require.Nil(t, afero.WriteFile(fs, "/garbage.bin", []byte("not a shard"), 0644))
	_, err = ReadFile(fs, "/garbage.bin")
	require.IsType(t, errors.CorruptShardError{}, err)
}

func TestUnsupportedCompression(t *testing.T) {
	_, err := NewCompressor("brotli")
	require.NotNil(t, err)
}
