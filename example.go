package tablegen

import (
	json "github.com/json-iterator/go"
	"github.com/tinylib/msgp/msgp"
)

// Column is a single column of a table header
type Column struct {
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	SampleValue  string   `json:"sample_value"`
	NameTokens   []string `json:"name_tokens"`
	SampleTokens []string `json:"sample_value_tokens"`
}

// Example is a table together with the sentences which surround it in its source document.
// Each sentence is already tokenized. Examples are read-only once stored.
type Example struct {
	UUID          string     `json:"uuid"`
	Header        []Column   `json:"header"`
	ContextBefore [][]string `json:"context_before"`
	ContextAfter  [][]string `json:"context_after"`
}

// Serialize renders an Example as JSON, for diagnostics
func (e *Example) Serialize() string {
	buf, err := json.Marshal(e)
	if err != nil {
		return "<unserializable example " + e.UUID + ">"
	}
	return string(buf)
}

// MarshalMsg implements msgp.Marshaler
func (e *Example) MarshalMsg(b []byte) ([]byte, error) {
	o := msgp.Require(b, e.Msgsize())
	o = msgp.AppendMapHeader(o, 4)
	o = msgp.AppendString(o, "uuid")
	o = msgp.AppendString(o, e.UUID)
	o = msgp.AppendString(o, "header")
	o = msgp.AppendArrayHeader(o, uint32(len(e.Header)))
	for i := range e.Header {
		o = e.Header[i].appendMsg(o)
	}
	o = msgp.AppendString(o, "context_before")
	o = appendSentences(o, e.ContextBefore)
	o = msgp.AppendString(o, "context_after")
	o = appendSentences(o, e.ContextAfter)
	return o, nil
}

// UnmarshalMsg implements msgp.Unmarshaler
func (e *Example) UnmarshalMsg(bts []byte) ([]byte, error) {
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
		case "uuid":
			e.UUID, bts, err = msgp.ReadStringBytes(bts)
		case "header":
			var n uint32
			n, bts, err = msgp.ReadArrayHeaderBytes(bts)
			if err != nil {
				return bts, err
			}
			e.Header = make([]Column, n)
			for i := range e.Header {
				bts, err = e.Header[i].readMsg(bts)
				if err != nil {
					return bts, err
				}
			}
		case "context_before":
			e.ContextBefore, bts, err = readSentences(bts)
		case "context_after":
			e.ContextAfter, bts, err = readSentences(bts)
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
func (e *Example) Msgsize() int {
	sz := msgp.MapHeaderSize + 4*msgp.StringPrefixSize + 40 + msgp.StringPrefixSize + len(e.UUID)
	sz += msgp.ArrayHeaderSize
	for i := range e.Header {
		sz += e.Header[i].msgsize()
	}
	sz += sentencesMsgsize(e.ContextBefore) + sentencesMsgsize(e.ContextAfter)
	return sz
}

func (c *Column) appendMsg(o []byte) []byte {
	o = msgp.AppendMapHeader(o, 5)
	o = msgp.AppendString(o, "name")
	o = msgp.AppendString(o, c.Name)
	o = msgp.AppendString(o, "type")
	o = msgp.AppendString(o, c.Type)
	o = msgp.AppendString(o, "sample_value")
	o = msgp.AppendString(o, c.SampleValue)
	o = msgp.AppendString(o, "name_tokens")
	o = appendTokens(o, c.NameTokens)
	o = msgp.AppendString(o, "sample_value_tokens")
	o = appendTokens(o, c.SampleTokens)
	return o
}

func (c *Column) readMsg(bts []byte) ([]byte, error) {
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
		case "name":
			c.Name, bts, err = msgp.ReadStringBytes(bts)
		case "type":
			c.Type, bts, err = msgp.ReadStringBytes(bts)
		case "sample_value":
			c.SampleValue, bts, err = msgp.ReadStringBytes(bts)
		case "name_tokens":
			c.NameTokens, bts, err = readTokens(bts)
		case "sample_value_tokens":
			c.SampleTokens, bts, err = readTokens(bts)
		default:
			bts, err = msgp.Skip(bts)
		}
		if err != nil {
			return bts, err
		}
	}
	return bts, nil
}

func (c *Column) msgsize() int {
	sz := msgp.MapHeaderSize + 5*msgp.StringPrefixSize + 52
	sz += 3*msgp.StringPrefixSize + len(c.Name) + len(c.Type) + len(c.SampleValue)
	return sz + tokensMsgsize(c.NameTokens) + tokensMsgsize(c.SampleTokens)
}

func appendTokens(o []byte, tokens []string) []byte {
	o = msgp.AppendArrayHeader(o, uint32(len(tokens)))
	for _, t := range tokens {
		o = msgp.AppendString(o, t)
	}
	return o
}

func readTokens(bts []byte) ([]string, []byte, error) {
	n, bts, err := msgp.ReadArrayHeaderBytes(bts)
	if err != nil {
		return nil, bts, err
	}
	tokens := make([]string, n)
	for i := range tokens {
		tokens[i], bts, err = msgp.ReadStringBytes(bts)
		if err != nil {
			return nil, bts, err
		}
	}
	return tokens, bts, nil
}

func tokensMsgsize(tokens []string) int {
	sz := msgp.ArrayHeaderSize
	for _, t := range tokens {
		sz += msgp.StringPrefixSize + len(t)
	}
	return sz
}

func appendSentences(o []byte, sents [][]string) []byte {
	o = msgp.AppendArrayHeader(o, uint32(len(sents)))
	for _, s := range sents {
		o = appendTokens(o, s)
	}
	return o
}

func readSentences(bts []byte) ([][]string, []byte, error) {
	n, bts, err := msgp.ReadArrayHeaderBytes(bts)
	if err != nil {
		return nil, bts, err
	}
	sents := make([][]string, n)
	for i := range sents {
		sents[i], bts, err = readTokens(bts)
		if err != nil {
			return nil, bts, err
		}
	}
	return sents, bts, nil
}

func sentencesMsgsize(sents [][]string) int {
	sz := msgp.ArrayHeaderSize
	for _, s := range sents {
		sz += tokensMsgsize(s)
	}
	return sz
}
