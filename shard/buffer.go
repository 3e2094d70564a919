// Package shard rolls Instances into columnar buffers and persists them as self-describing,
// checksummed shard files.
package shard

import (
	"github.com/go-sif/tablegen"
)

// Buffer holds a batch of Instances flattened into columnar arrays. Each offset pair is a
// [start, end) range into the corresponding flat array.
type Buffer struct {
	Sequences         []int
	SegmentALengths   []int
	SequenceOffsets   [][2]int
	MaskedLMPositions []int
	MaskedLMLabelIDs  []int
	MaskedLMOffsets   [][2]int
}

// NewBuffer creates an empty Buffer
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Append flattens an Instance onto the end of the Buffer
func (b *Buffer) Append(inst *tablegen.Instance) {
	start := len(b.Sequences)
	b.Sequences = append(b.Sequences, inst.TokenIDs...)
	b.SequenceOffsets = append(b.SequenceOffsets, [2]int{start, len(b.Sequences)})
	b.SegmentALengths = append(b.SegmentALengths, inst.SegmentALength)

	start = len(b.MaskedLMPositions)
	b.MaskedLMPositions = append(b.MaskedLMPositions, inst.MaskedLMPositions...)
	b.MaskedLMLabelIDs = append(b.MaskedLMLabelIDs, inst.MaskedLMLabelIDs...)
	b.MaskedLMOffsets = append(b.MaskedLMOffsets, [2]int{start, len(b.MaskedLMPositions)})
}

// Len returns the number of Instances in the Buffer
func (b *Buffer) Len() int {
	return len(b.SegmentALengths)
}

// Reset empties the Buffer, retaining its capacity
func (b *Buffer) Reset() {
	b.Sequences = b.Sequences[:0]
	b.SegmentALengths = b.SegmentALengths[:0]
	b.SequenceOffsets = b.SequenceOffsets[:0]
	b.MaskedLMPositions = b.MaskedLMPositions[:0]
	b.MaskedLMLabelIDs = b.MaskedLMLabelIDs[:0]
	b.MaskedLMOffsets = b.MaskedLMOffsets[:0]
}

// Instance reconstructs the i-th Instance in the Buffer
func (b *Buffer) Instance(i int) *tablegen.Instance {
	seq, mlm := b.SequenceOffsets[i], b.MaskedLMOffsets[i]
	return &tablegen.Instance{
		TokenIDs:          append([]int{}, b.Sequences[seq[0]:seq[1]]...),
		SegmentALength:    b.SegmentALengths[i],
		MaskedLMPositions: append([]int{}, b.MaskedLMPositions[mlm[0]:mlm[1]]...),
		MaskedLMLabelIDs:  append([]int{}, b.MaskedLMLabelIDs[mlm[0]:mlm[1]]...),
	}
}
