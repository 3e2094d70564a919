package tablegen

import (
	"github.com/tinylib/msgp/msgp"
)

// InstanceInfo describes where an Instance came from. It is only kept for debugging.
type InstanceInfo struct {
	TableUUID     string `json:"table_uuid"`
	NumColumns    int    `json:"num_columns"`
	ContextLength int    `json:"context_length"`
}

// Instance is a single masked-LM training sample derived from an Example.
// Instances are immutable once built, except for Strip.
type Instance struct {
	TokenIDs          []int `json:"token_ids"`
	SegmentALength    int   `json:"segment_a_length"`
	MaskedLMPositions []int `json:"masked_lm_positions"`
	MaskedLMLabelIDs  []int `json:"masked_lm_label_ids"`

	// debug-only fields, removed by Strip
	Tokens         []string      `json:"tokens,omitempty"`
	MaskedLMLabels []string      `json:"masked_lm_labels,omitempty"`
	Info           *InstanceInfo `json:"info,omitempty"`
}

// Strip removes the fields of an Instance which are not needed to write shards
func (inst *Instance) Strip() {
	inst.Tokens = nil
	inst.MaskedLMLabels = nil
	inst.Info = nil
}

// MarshalMsg implements msgp.Marshaler. Debug fields are only written when present.
func (inst *Instance) MarshalMsg(b []byte) ([]byte, error) {
	o := msgp.Require(b, inst.Msgsize())
	fields := uint32(4)
	if len(inst.Tokens) > 0 {
		fields++
	}
	if len(inst.MaskedLMLabels) > 0 {
		fields++
	}
	if inst.Info != nil {
		fields++
	}
	o = msgp.AppendMapHeader(o, fields)
	o = msgp.AppendString(o, "token_ids")
	o = appendInts(o, inst.TokenIDs)
	o = msgp.AppendString(o, "segment_a_length")
	o = msgp.AppendInt(o, inst.SegmentALength)
	o = msgp.AppendString(o, "masked_lm_positions")
	o = appendInts(o, inst.MaskedLMPositions)
	o = msgp.AppendString(o, "masked_lm_label_ids")
	o = appendInts(o, inst.MaskedLMLabelIDs)
	if len(inst.Tokens) > 0 {
		o = msgp.AppendString(o, "tokens")
		o = appendTokens(o, inst.Tokens)
	}
	if len(inst.MaskedLMLabels) > 0 {
		o = msgp.AppendString(o, "masked_lm_labels")
		o = appendTokens(o, inst.MaskedLMLabels)
	}
	if inst.Info != nil {
		o = msgp.AppendString(o, "info")
		o = msgp.AppendMapHeader(o, 3)
		o = msgp.AppendString(o, "table_uuid")
		o = msgp.AppendString(o, inst.Info.TableUUID)
		o = msgp.AppendString(o, "num_columns")
		o = msgp.AppendInt(o, inst.Info.NumColumns)
		o = msgp.AppendString(o, "context_length")
		o = msgp.AppendInt(o, inst.Info.ContextLength)
	}
	return o, nil
}

// UnmarshalMsg implements msgp.Unmarshaler
func (inst *Instance) UnmarshalMsg(bts []byte) ([]byte, error) {
	sz, bts, err := msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		return bts, err
	}
	for ; sz > 0; sz-- {
		var field string
		field, bts, err = msgp.ReadStringBytes(bts)
		if err != nil {
			return bts, err
		}
		switch field {
		case "token_ids":
			inst.TokenIDs, bts, err = readInts(bts)
		case "segment_a_length":
			inst.SegmentALength, bts, err = msgp.ReadIntBytes(bts)
		case "masked_lm_positions":
			inst.MaskedLMPositions, bts, err = readInts(bts)
		case "masked_lm_label_ids":
			inst.MaskedLMLabelIDs, bts, err = readInts(bts)
		case "tokens":
			inst.Tokens, bts, err = readTokens(bts)
		case "masked_lm_labels":
			inst.MaskedLMLabels, bts, err = readTokens(bts)
		case "info":
			inst.Info = &InstanceInfo{}
			bts, err = inst.Info.readMsg(bts)
		default:
			bts, err = msgp.Skip(bts)
		}
		if err != nil {
			return bts, err
		}
	}
	return bts, nil
}

// Msgsize returns an upper bound estimate of the number of bytes occupied by the serialized message
func (inst *Instance) Msgsize() int {
	sz := msgp.MapHeaderSize + 7*msgp.StringPrefixSize + 96
	sz += intsMsgsize(inst.TokenIDs) + msgp.IntSize + intsMsgsize(inst.MaskedLMPositions) + intsMsgsize(inst.MaskedLMLabelIDs)
	sz += tokensMsgsize(inst.Tokens) + tokensMsgsize(inst.MaskedLMLabels)
	if inst.Info != nil {
		sz += msgp.MapHeaderSize + 4*msgp.StringPrefixSize + 50 + len(inst.Info.TableUUID) + 2*msgp.IntSize
	}
	return sz
}

func (info *InstanceInfo) readMsg(bts []byte) ([]byte, error) {
	sz, bts, err := msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		return bts, err
	}
	for ; sz > 0; sz-- {
		var field string
		field, bts, err = msgp.ReadStringBytes(bts)
		if err != nil {
			return bts, err
		}
		switch field {
		case "table_uuid":
			info.TableUUID, bts, err = msgp.ReadStringBytes(bts)
		case "num_columns":
			info.NumColumns, bts, err = msgp.ReadIntBytes(bts)
		case "context_length":
			info.ContextLength, bts, err = msgp.ReadIntBytes(bts)
		default:
			bts, err = msgp.Skip(bts)
		}
		if err != nil {
			return bts, err
		}
	}
	return bts, nil
}

func appendInts(o []byte, vals []int) []byte {
	o = msgp.AppendArrayHeader(o, uint32(len(vals)))
	for _, v := range vals {
		o = msgp.AppendInt(o, v)
	}
	return o
}

func readInts(bts []byte) ([]int, []byte, error) {
	n, bts, err := msgp.ReadArrayHeaderBytes(bts)
	if err != nil {
		return nil, bts, err
	}
	vals := make([]int, n)
	for i := range vals {
		vals[i], bts, err = msgp.ReadIntBytes(bts)
		if err != nil {
			return nil, bts, err
		}
	}
	return vals, bts, nil
}

func intsMsgsize(vals []int) int {
	return msgp.ArrayHeaderSize + len(vals)*msgp.IntSize
}
