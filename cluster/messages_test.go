package cluster

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodecMessages(t *testing.T) {
	codec := msgpCodec{}
	env := &Envelope{Payload: []byte{1, 2, 3}}
	buf, err := codec.Marshal(env)
	require.Nil(t, err)
	decoded := &Envelope{}
	require.Nil(t, codec.Unmarshal(buf, decoded))
	require.Equal(t, env, decoded)

	status := &StatusMsg{Kind: StatusDone, WorkerID: "w-1", Count: 42}
	buf, err = codec.Marshal(status)
	require.Nil(t, err)
	decodedStatus := &StatusMsg{}
	require.Nil(t, codec.Unmarshal(buf, decodedStatus))
	require.Equal(t, status, decodedStatus)
	require.Equal(t, "done", decodedStatus.Kind.String())

	_, err = codec.Marshal("not a message")
	require.Error(t, err)
}

func TestEndOfStreamHasNoPayload(t *testing.T) {
	buf, err := (&Envelope{EndOfStream: true}).MarshalMsg(nil)
	require.Nil(t, err)
	decoded := &Envelope{}
	_, err = decoded.UnmarshalMsg(buf)
	require.Nil(t, err)
	require.True(t, decoded.EndOfStream)
	require.Empty(t, decoded.Payload)
}
