package stats

import (
	"testing"
	"time"

	"github.com/go-sif/tablegen"
	"github.com/stretchr/testify/require"
)

func TestRunStatistics(t *testing.T) {
	var rs RunStatistics
	var _ tablegen.RuntimeStatistics = &rs
	rs.Start(3)
	rs.Start(5) // ignored
	require.Equal(t, 3, rs.GetNumWorkers())
	rs.AddExamplesProcessed(10)
	rs.AddExamplesProcessed(5)
	rs.WorkerFinished()
	require.Equal(t, int64(15), rs.GetNumExamplesProcessed())
	require.Equal(t, 1, rs.GetNumWorkersFinished())
	time.Sleep(5 * time.Millisecond)
	rs.Finish()
	runtime := rs.GetRuntime()
	require.True(t, runtime > 0)
	require.Equal(t, runtime, rs.GetRuntime())
	require.True(t, rs.GetExamplesPerSecond() > 0)
}
