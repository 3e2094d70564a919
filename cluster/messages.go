package cluster

import (
	"github.com/tinylib/msgp/msgp"
)

// Envelope carries one serialized Instance, or the end-of-stream sentinel, from a worker to the aggregator
type Envelope struct {
	Payload     []byte
	EndOfStream bool
}

// StatusKind distinguishes the messages of the status protocol
type StatusKind int

const (
	// StatusAlive registers a worker with the coordinator
	StatusAlive StatusKind = iota
	// StatusHeartbeat reports progress since the previous report
	StatusHeartbeat
	// StatusDone is the terminal message of a worker, reporting progress since the previous report
	StatusDone
)

func (k StatusKind) String() string {
	switch k {
	case StatusAlive:
		return "alive"
	case StatusHeartbeat:
		return "heartbeat"
	case StatusDone:
		return "done"
	default:
		return "unknown"
	}
}

// StatusMsg is a message of the status protocol
type StatusMsg struct {
	Kind     StatusKind
	WorkerID string
	Count    int
}

// LogMsg is a diagnostic message from a worker, re-logged by the coordinator
type LogMsg struct {
	Level   int
	Source  string
	Message string
}

// Ack closes a client stream, reporting how many messages the server received
type Ack struct {
	Count int64
}

// MarshalMsg implements msgp.Marshaler
func (e *Envelope) MarshalMsg(b []byte) ([]byte, error) {
	o := msgp.Require(b, e.Msgsize())
	o = msgp.AppendMapHeader(o, 2)
	o = msgp.AppendString(o, "payload")
	o = msgp.AppendBytes(o, e.Payload)
	o = msgp.AppendString(o, "eos")
	o = msgp.AppendBool(o, e.EndOfStream)
	return o, nil
}

// UnmarshalMsg implements msgp.Unmarshaler
func (e *Envelope) UnmarshalMsg(bts []byte) ([]byte, error) {
	return readMap(bts, func(field string, bts []byte) (o []byte, err error) {
		switch field {
		case "payload":
			e.Payload, o, err = msgp.ReadBytesBytes(bts, e.Payload[:0])
		case "eos":
			e.EndOfStream, o, err = msgp.ReadBoolBytes(bts)
		default:
			o, err = msgp.Skip(bts)
		}
		return
	})
}

// Msgsize returns an upper bound estimate of the number of bytes occupied by the serialized message
func (e *Envelope) Msgsize() int {
	return msgp.MapHeaderSize + 2*msgp.StringPrefixSize + 10 + msgp.BytesPrefixSize + len(e.Payload) + msgp.BoolSize
}

// MarshalMsg implements msgp.Marshaler
func (m *StatusMsg) MarshalMsg(b []byte) ([]byte, error) {
	o := msgp.Require(b, m.Msgsize())
	o = msgp.AppendMapHeader(o, 3)
	o = msgp.AppendString(o, "kind")
	o = msgp.AppendInt(o, int(m.Kind))
	o = msgp.AppendString(o, "worker_id")
	o = msgp.AppendString(o, m.WorkerID)
	o = msgp.AppendString(o, "count")
	o = msgp.AppendInt(o, m.Count)
	return o, nil
}

// UnmarshalMsg implements msgp.Unmarshaler
func (m *StatusMsg) UnmarshalMsg(bts []byte) ([]byte, error) {
	return readMap(bts, func(field string, bts []byte) (o []byte, err error) {
		switch field {
		case "kind":
			var k int
			k, o, err = msgp.ReadIntBytes(bts)
			m.Kind = StatusKind(k)
		case "worker_id":
			m.WorkerID, o, err = msgp.ReadStringBytes(bts)
		case "count":
			m.Count, o, err = msgp.ReadIntBytes(bts)
		default:
			o, err = msgp.Skip(bts)
		}
		return
	})
}

// Msgsize returns an upper bound estimate of the number of bytes occupied by the serialized message
func (m *StatusMsg) Msgsize() int {
	return msgp.MapHeaderSize + 3*msgp.StringPrefixSize + 18 + 2*msgp.IntSize + msgp.StringPrefixSize + len(m.WorkerID)
}

// MarshalMsg implements msgp.Marshaler
func (m *LogMsg) MarshalMsg(b []byte) ([]byte, error) {
	o := msgp.Require(b, m.Msgsize())
	o = msgp.AppendMapHeader(o, 3)
	o = msgp.AppendString(o, "level")
	o = msgp.AppendInt(o, m.Level)
	o = msgp.AppendString(o, "source")
	o = msgp.AppendString(o, m.Source)
	o = msgp.AppendString(o, "message")
	o = msgp.AppendString(o, m.Message)
	return o, nil
}

// UnmarshalMsg implements msgp.Unmarshaler
func (m *LogMsg) UnmarshalMsg(bts []byte) ([]byte, error) {
	return readMap(bts, func(field string, bts []byte) (o []byte, err error) {
		switch field {
		case "level":
			m.Level, o, err = msgp.ReadIntBytes(bts)
		case "source":
			m.Source, o, err = msgp.ReadStringBytes(bts)
		case "message":
			m.Message, o, err = msgp.ReadStringBytes(bts)
		default:
			o, err = msgp.Skip(bts)
		}
		return
	})
}

// Msgsize returns an upper bound estimate of the number of bytes occupied by the serialized message
func (m *LogMsg) Msgsize() int {
	return msgp.MapHeaderSize + 3*msgp.StringPrefixSize + 18 + msgp.IntSize + 2*msgp.StringPrefixSize + len(m.Source) + len(m.Message)
}

// MarshalMsg implements msgp.Marshaler
func (a *Ack) MarshalMsg(b []byte) ([]byte, error) {
	o := msgp.Require(b, a.Msgsize())
	o = msgp.AppendMapHeader(o, 1)
	o = msgp.AppendString(o, "count")
	o = msgp.AppendInt64(o, a.Count)
	return o, nil
}

// UnmarshalMsg implements msgp.Unmarshaler
func (a *Ack) UnmarshalMsg(bts []byte) ([]byte, error) {
	return readMap(bts, func(field string, bts []byte) (o []byte, err error) {
		if field == "count" {
			a.Count, o, err = msgp.ReadInt64Bytes(bts)
			return
		}
		return msgp.Skip(bts)
	})
}

// Msgsize returns an upper bound estimate of the number of bytes occupied by the serialized message
func (a *Ack) Msgsize() int {
	return msgp.MapHeaderSize + msgp.StringPrefixSize + 5 + msgp.Int64Size
}

// readMap decodes a msgpack map, handing each value to readField
func readMap(bts []byte, readField func(field string, bts []byte) ([]byte, error)) ([]byte, error) {
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
		bts, err = readField(field, bts)
		if err != nil {
			return bts, err
		}
	}
	return bts, nil
}
