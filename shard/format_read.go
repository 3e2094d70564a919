package shard

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/tinylib/msgp/msgp"
)

// readArrays reads the "arrays" map of a shard file. Array data is left compressed.
func readArrays(r *msgp.Reader, arrays map[string]*array) error {
	sz, err := r.ReadMapHeader()
	if err != nil {
		return err
	}
	for ; sz > 0; sz-- {
		a := &array{}
		if a.name, err = r.ReadString(); err != nil {
			return err
		}
		fields, err := r.ReadMapHeader()
		if err != nil {
			return err
		}
		for ; fields > 0; fields-- {
			field, err := r.ReadString()
			if err != nil {
				return err
			}
			switch field {
			case "dtype":
				a.dtype, err = r.ReadString()
			case "shape":
				var dims uint32
				if dims, err = r.ReadArrayHeader(); err != nil {
					return err
				}
				a.shape = make([]int, dims)
				for i := range a.shape {
					if a.shape[i], err = r.ReadInt(); err != nil {
						return err
					}
				}
			case "checksum":
				a.expectedChecksum, err = r.ReadUint64()
			case "data":
				a.raw, err = r.ReadBytes(nil)
			default:
				err = r.Skip()
			}
			if err != nil {
				return err
			}
		}
		arrays[a.name] = a
	}
	return nil
}

func (a *array) checksum() uint64 {
	return xxhash.Sum64(a.raw)
}

func (a *array) numElements() int {
	n := 1
	for _, dim := range a.shape {
		n *= dim
	}
	return n
}

func decodeArrays(arrays map[string]*array) (*Buffer, error) {
	buf := NewBuffer()
	for _, col := range []struct {
		name string
		dst  *[]int
	}{
		{ArraySequences, &buf.Sequences},
		{ArraySegmentALengths, &buf.SegmentALengths},
		{ArrayMaskedLMPositions, &buf.MaskedLMPositions},
		{ArrayMaskedLMLabelIDs, &buf.MaskedLMLabelIDs},
	} {
		a, ok := arrays[col.name]
		if !ok {
			return nil, fmt.Errorf("missing array %s", col.name)
		}
		if a.dtype != DTypeUint16 || len(a.shape) != 1 || len(a.raw) != 2*a.numElements() {
			return nil, fmt.Errorf("array %s has dtype %s, shape %v and %d bytes", col.name, a.dtype, a.shape, len(a.raw))
		}
		vals := make([]int, a.numElements())
		for i := range vals {
			vals[i] = int(binary.LittleEndian.Uint16(a.raw[2*i:]))
		}
		*col.dst = vals
	}
	for _, col := range []struct {
		name string
		dst  *[][2]int
	}{
		{ArraySequenceOffsets, &buf.SequenceOffsets},
		{ArrayMaskedLMOffsets, &buf.MaskedLMOffsets},
	} {
		a, ok := arrays[col.name]
		if !ok {
			return nil, fmt.Errorf("missing array %s", col.name)
		}
		if a.dtype != DTypeInt64 || len(a.shape) != 2 || a.shape[1] != 2 || len(a.raw) != 8*a.numElements() {
			return nil, fmt.Errorf("array %s has dtype %s, shape %v and %d bytes", col.name, a.dtype, a.shape, len(a.raw))
		}
		pairs := make([][2]int, a.shape[0])
		for i := range pairs {
			pairs[i][0] = int(int64(binary.LittleEndian.Uint64(a.raw[16*i:])))
			pairs[i][1] = int(int64(binary.LittleEndian.Uint64(a.raw[16*i+8:])))
		}
		*col.dst = pairs
	}
	return buf, nil
}

// validate checks that every per-instance array has n entries, and that every offset pair is a
// valid, non-overlapping range into its flat arrays
func validate(buf *Buffer, n int) error {
	if len(buf.SegmentALengths) != n || len(buf.SequenceOffsets) != n || len(buf.MaskedLMOffsets) != n {
		return fmt.Errorf("expected %d instances, found %d segment lengths, %d sequence offsets and %d masked offsets",
			n, len(buf.SegmentALengths), len(buf.SequenceOffsets), len(buf.MaskedLMOffsets))
	}
	if len(buf.MaskedLMPositions) != len(buf.MaskedLMLabelIDs) {
		return fmt.Errorf("%d masked positions but %d labels", len(buf.MaskedLMPositions), len(buf.MaskedLMLabelIDs))
	}
	if err := validateOffsets(ArraySequenceOffsets, buf.SequenceOffsets, len(buf.Sequences)); err != nil {
		return err
	}
	return validateOffsets(ArrayMaskedLMOffsets, buf.MaskedLMOffsets, len(buf.MaskedLMPositions))
}

func validateOffsets(name string, offsets [][2]int, length int) error {
	prevEnd := 0
	for i, pair := range offsets {
		if pair[0] < prevEnd || pair[1] < pair[0] || pair[1] > length {
			return fmt.Errorf("%s[%d] = %v is not a valid range", name, i, pair)
		}
		prevEnd = pair[1]
	}
	return nil
}
