package cluster

import (
	"fmt"

	"github.com/tinylib/msgp/msgp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// codecName is the gRPC content-subtype under which messages are exchanged as msgpack
const codecName = "msgp"

func init() {
	encoding.RegisterCodec(msgpCodec{})
}

// msgpCodec is a gRPC codec for messages implementing msgp.Marshaler and msgp.Unmarshaler
type msgpCodec struct{}

func (msgpCodec) Marshal(v interface{}) ([]byte, error) {
	m, ok := v.(msgp.Marshaler)
	if !ok {
		return nil, fmt.Errorf("%T cannot be encoded as msgpack", v)
	}
	return m.MarshalMsg(nil)
}

func (msgpCodec) Unmarshal(data []byte, v interface{}) error {
	u, ok := v.(msgp.Unmarshaler)
	if !ok {
		return fmt.Errorf("%T cannot be decoded from msgpack", v)
	}
	_, err := u.UnmarshalMsg(data)
	return err
}

func (msgpCodec) Name() string {
	return codecName
}

// callOptions select the msgpack codec for every call on a connection
func callOptions() grpc.DialOption {
	return grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName))
}
