package util

import (
	"fmt"
	"strings"
	"testing"

	"github.com/go-sif/tablegen"
	"github.com/stretchr/testify/require"
)

type panickyBuilder struct{ fail bool }

func (b *panickyBuilder) Build(example *tablegen.Example, sampler tablegen.ContextSampler) ([]*tablegen.Instance, error) {
	if b.fail {
		return []*tablegen.Instance{{}}, fmt.Errorf("no columns")
	}
	panic("out of range")
}

func (b *panickyBuilder) Strip(inst *tablegen.Instance) {}

func TestSafeBuildRecoversPanics(t *testing.T) {
	instances, err := SafeBuild(&panickyBuilder{}, &tablegen.Example{}, nil)
	require.Nil(t, instances)
	require.NotNil(t, err)
	require.True(t, strings.HasPrefix(err.Error(), "Build Panic: out of range"))
}

func TestSafeBuildDropsPartialResults(t *testing.T) {
	instances, err := SafeBuild(&panickyBuilder{fail: true}, &tablegen.Example{}, nil)
	require.Nil(t, instances)
	require.EqualError(t, err, "no columns")
	require.Contains(t, fmt.Sprintf("%+v", err), "TestSafeBuildDropsPartialResults")
}

func TestFormatMultiError(t *testing.T) {
	msg := FormatMultiError([]error{fmt.Errorf("first"), fmt.Errorf("second")})
	require.Equal(t, "first\nsecond\n", msg)
}
