package shard

import (
	"encoding/binary"
	"fmt"
	"math"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/go-sif/tablegen/errors"
	"github.com/spf13/afero"
	"github.com/tinylib/msgp/msgp"
)

const (
	// FormatName identifies shard files
	FormatName = "tablegen-shard"
	// FormatVersion is the version of the shard layout written by WriteFile
	FormatVersion = 1
)

// dtypes of shard arrays
const (
	DTypeUint16 = "uint16"
	DTypeInt64  = "int64"
)

// Names of the arrays in a shard file
const (
	ArraySequences         = "sequences"
	ArraySegmentALengths   = "segment_a_lengths"
	ArraySequenceOffsets   = "sequence_offsets"
	ArrayMaskedLMPositions = "masked_lm_positions"
	ArrayMaskedLMLabelIDs  = "masked_lm_label_ids"
	ArrayMaskedLMOffsets   = "masked_lm_offsets"
)

// FileName returns the name of the idx-th shard of an epoch file
func FileName(epochPath string, idx int) string {
	return fmt.Sprintf("%s.shard%d.bin", epochPath, idx)
}

// array is a single typed array within a shard file
type array struct {
	name  string
	dtype string
	shape []int
	raw   []byte // little-endian, uncompressed

	expectedChecksum uint64
}

// WriteFile persists the contents of buf at filePath. The file is written next to its
// destination and renamed into place, so readers never observe a partial shard.
func WriteFile(fs afero.Fs, filePath string, buf *Buffer, compressor Compressor) error {
	arrays, err := encodeArrays(buf)
	if err != nil {
		return err
	}
	o := msgp.AppendMapHeader(nil, 5)
	o = msgp.AppendString(o, "format")
	o = msgp.AppendString(o, FormatName)
	o = msgp.AppendString(o, "version")
	o = msgp.AppendInt(o, FormatVersion)
	o = msgp.AppendString(o, "num_instances")
	o = msgp.AppendInt(o, buf.Len())
	o = msgp.AppendString(o, "compression")
	o = msgp.AppendString(o, compressor.Name())
	o = msgp.AppendString(o, "arrays")
	o = msgp.AppendMapHeader(o, uint32(len(arrays)))
	for _, a := range arrays {
		data := a.raw
		if len(data) > 0 {
			if data, err = compressor.Compress(a.raw); err != nil {
				return err
			}
		}
		o = msgp.AppendString(o, a.name)
		o = msgp.AppendMapHeader(o, 4)
		o = msgp.AppendString(o, "dtype")
		o = msgp.AppendString(o, a.dtype)
		o = msgp.AppendString(o, "shape")
		o = msgp.AppendArrayHeader(o, uint32(len(a.shape)))
		for _, dim := range a.shape {
			o = msgp.AppendInt(o, dim)
		}
		o = msgp.AppendString(o, "checksum")
		o = msgp.AppendUint64(o, xxhash.Sum64(a.raw))
		o = msgp.AppendString(o, "data")
		o = msgp.AppendBytes(o, data)
	}

	if err := fs.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return err
	}
	tmp := filePath + ".tmp"
	if err := afero.WriteFile(fs, tmp, o, 0644); err != nil {
		fs.Remove(tmp)
		return fmt.Errorf("unable to write shard %s: %w", filePath, err)
	}
	if err := fs.Rename(tmp, filePath); err != nil {
		fs.Remove(tmp)
		return fmt.Errorf("unable to write shard %s: %w", filePath, err)
	}
	return nil
}

// ReadFile loads and verifies a shard file written by WriteFile
func ReadFile(fs afero.Fs, filePath string) (*Buffer, error) {
	f, err := fs.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	corrupt := func(reason string, args ...interface{}) error {
		return errors.CorruptShardError{Path: filePath, Reason: fmt.Sprintf(reason, args...)}
	}

	r := msgp.NewReader(f)
	sz, err := r.ReadMapHeader()
	if err != nil {
		return nil, corrupt("%v", err)
	}
	var (
		format, compression string
		version, n          int
		arrays              = make(map[string]*array)
	)
	for ; sz > 0; sz-- {
		field, err := r.ReadString()
		if err != nil {
			return nil, corrupt("%v", err)
		}
		switch field {
		case "format":
			format, err = r.ReadString()
		case "version":
			version, err = r.ReadInt()
		case "num_instances":
			n, err = r.ReadInt()
		case "compression":
			compression, err = r.ReadString()
		case "arrays":
			err = readArrays(r, arrays)
		default:
			err = r.Skip()
		}
		if err != nil {
			return nil, corrupt("field %s: %v", field, err)
		}
	}
	if format != FormatName {
		return nil, corrupt("unrecognized format %q", format)
	}
	if version != FormatVersion {
		return nil, corrupt("unsupported version %d", version)
	}

	compressor, err := NewCompressor(compression)
	if err != nil {
		return nil, corrupt("%v", err)
	}
	defer compressor.Close()
	for _, a := range arrays {
		if len(a.raw) > 0 {
			if a.raw, err = compressor.Decompress(a.raw); err != nil {
				return nil, corrupt("array %s: %v", a.name, err)
			}
		}
	}
	for _, a := range arrays {
		if a.checksum() != a.expectedChecksum {
			return nil, corrupt("array %s failed its checksum", a.name)
		}
	}
	buf, err := decodeArrays(arrays)
	if err != nil {
		return nil, corrupt("%v", err)
	}
	if err := validate(buf, n); err != nil {
		return nil, corrupt("%v", err)
	}
	return buf, nil
}

func encodeArrays(buf *Buffer) ([]*array, error) {
	var arrays []*array
	for _, col := range []struct {
		name string
		vals []int
	}{
		{ArraySequences, buf.Sequences},
		{ArraySegmentALengths, buf.SegmentALengths},
		{ArrayMaskedLMPositions, buf.MaskedLMPositions},
		{ArrayMaskedLMLabelIDs, buf.MaskedLMLabelIDs},
	} {
		raw, err := encodeUint16(col.name, col.vals)
		if err != nil {
			return nil, err
		}
		arrays = append(arrays, &array{name: col.name, dtype: DTypeUint16, shape: []int{len(col.vals)}, raw: raw})
	}
	arrays = append(arrays,
		&array{name: ArraySequenceOffsets, dtype: DTypeInt64, shape: []int{len(buf.SequenceOffsets), 2}, raw: encodeOffsets(buf.SequenceOffsets)},
		&array{name: ArrayMaskedLMOffsets, dtype: DTypeInt64, shape: []int{len(buf.MaskedLMOffsets), 2}, raw: encodeOffsets(buf.MaskedLMOffsets)},
	)
	return arrays, nil
}

func encodeUint16(name string, vals []int) ([]byte, error) {
	raw := make([]byte, 2*len(vals))
	for i, v := range vals {
		if v < 0 || v > math.MaxUint16 {
			return nil, errors.ShardOverflowError{Array: name, Value: v}
		}
		binary.LittleEndian.PutUint16(raw[2*i:], uint16(v))
	}
	return raw, nil
}

func encodeOffsets(offsets [][2]int) []byte {
	raw := make([]byte, 16*len(offsets))
	for i, pair := range offsets {
		binary.LittleEndian.PutUint64(raw[16*i:], uint64(pair[0]))
		binary.LittleEndian.PutUint64(raw[16*i+8:], uint64(pair[1]))
	}
	return raw
}
