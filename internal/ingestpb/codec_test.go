package ingestpb_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/encoding"

	"github.com/ablate-ai/iris/internal/ingestpb"
)

func Test_MsgpackCodec_Is_Registered_Under_Its_Name(t *testing.T) {
	t.Parallel()

	codec := encoding.GetCodec(ingestpb.CallContentSubtype)
	require.NotNil(t, codec, "codec must self-register via init()")
	assert.Equal(t, "msgpack", codec.Name())
}

func Test_MsgpackCodec_Roundtrips_MetricsSample(t *testing.T) {
	t.Parallel()

	codec := encoding.GetCodec(ingestpb.CallContentSubtype)
	require.NotNil(t, codec)

	in := &ingestpb.MetricsSample{AgentID: "a1", Timestamp: 12345, Hostname: "host-a1"}
	data, err := codec.Marshal(in)
	require.NoError(t, err)

	var out ingestpb.MetricsSample
	require.NoError(t, codec.Unmarshal(data, &out))
	assert.Equal(t, *in, out)
}

func Test_MetricsSample_ToModel_FromModel_Roundtrip(t *testing.T) {
	t.Parallel()

	wire := &ingestpb.MetricsSample{AgentID: "a1", Timestamp: 99, Hostname: "h"}
	model := wire.ToModel()
	back := ingestpb.FromModel(model)

	assert.Equal(t, wire, back)
}
