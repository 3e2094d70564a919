package stats

import (
	"sync"
	"time"
)

const statisticRollingWindows = 5

// RunStatistics contains statistics about a running epoch. It is safe for concurrent use.
type RunStatistics struct {
	lock                   sync.Mutex
	started                bool
	finished               bool
	startTime              time.Time
	totalRuntime           time.Duration
	examplesProcessed      int64
	workersFinished        int
	numWorkers             int
	recentReportTimes      []time.Time // for a rolling rate over recent progress reports
	recentReportCounts     []int64
	recentReportsHead      int
	joinRuntime            time.Duration
	aggregationWaitRuntime time.Duration
	currentPhaseStartTime  time.Time
}

// Start triggers statistics tracking, if it hasn't been started already
func (rs *RunStatistics) Start(numWorkers int) {
	rs.lock.Lock()
	defer rs.lock.Unlock()
	if !rs.started {
		rs.started = true
		rs.startTime = time.Now()
		rs.currentPhaseStartTime = rs.startTime
		rs.numWorkers = numWorkers
		rs.recentReportTimes = make([]time.Time, statisticRollingWindows)
		rs.recentReportCounts = make([]int64, statisticRollingWindows)
	}
}

// Finish completes statistics tracking
func (rs *RunStatistics) Finish() {
	rs.lock.Lock()
	defer rs.lock.Unlock()
	if !rs.finished {
		rs.finished = true
		rs.totalRuntime = time.Since(rs.startTime)
	}
}

// EndJoin tracks the moment every worker has registered
func (rs *RunStatistics) EndJoin() {
	rs.lock.Lock()
	defer rs.lock.Unlock()
	rs.joinRuntime = time.Since(rs.startTime)
	rs.currentPhaseStartTime = time.Now()
}

// EndProcessing tracks the moment every worker has finished, after which the coordinator waits on the aggregator
func (rs *RunStatistics) EndProcessing() {
	rs.lock.Lock()
	defer rs.lock.Unlock()
	rs.currentPhaseStartTime = time.Now()
}

// EndAggregation tracks the moment the aggregator reported its result
func (rs *RunStatistics) EndAggregation() {
	rs.lock.Lock()
	defer rs.lock.Unlock()
	rs.aggregationWaitRuntime = time.Since(rs.currentPhaseStartTime)
}

// AddExamplesProcessed records a progress report from a worker
func (rs *RunStatistics) AddExamplesProcessed(n int) {
	rs.lock.Lock()
	defer rs.lock.Unlock()
	rs.examplesProcessed += int64(n)
	if rs.recentReportTimes == nil {
		return
	}
	rs.recentReportTimes[rs.recentReportsHead] = time.Now()
	rs.recentReportCounts[rs.recentReportsHead] = rs.examplesProcessed
	rs.recentReportsHead = (rs.recentReportsHead + 1) % statisticRollingWindows
}

// WorkerFinished records that a worker has finished its partition
func (rs *RunStatistics) WorkerFinished() {
	rs.lock.Lock()
	defer rs.lock.Unlock()
	rs.workersFinished++
}

// GetStartTime returns the start time of the epoch
func (rs *RunStatistics) GetStartTime() time.Time {
	rs.lock.Lock()
	defer rs.lock.Unlock()
	return rs.startTime
}

// GetRuntime returns the running time of the epoch
func (rs *RunStatistics) GetRuntime() time.Duration {
	rs.lock.Lock()
	defer rs.lock.Unlock()
	if rs.finished {
		return rs.totalRuntime
	}
	return time.Since(rs.startTime)
}

// GetNumExamplesProcessed returns the number of Examples workers have reported as processed
func (rs *RunStatistics) GetNumExamplesProcessed() int64 {
	rs.lock.Lock()
	defer rs.lock.Unlock()
	return rs.examplesProcessed
}

// GetNumWorkersFinished returns the number of workers which have finished their partition
func (rs *RunStatistics) GetNumWorkersFinished() int {
	rs.lock.Lock()
	defer rs.lock.Unlock()
	return rs.workersFinished
}

// GetNumWorkers returns the number of workers in the epoch
func (rs *RunStatistics) GetNumWorkers() int {
	rs.lock.Lock()
	defer rs.lock.Unlock()
	return rs.numWorkers
}

// GetExamplesPerSecond returns the average processing rate since the epoch started
func (rs *RunStatistics) GetExamplesPerSecond() float64 {
	rs.lock.Lock()
	defer rs.lock.Unlock()
	var elapsed time.Duration
	if rs.finished {
		elapsed = rs.totalRuntime
	} else {
		elapsed = time.Since(rs.startTime)
	}
	if elapsed <= 0 {
		return 0
	}
	return float64(rs.examplesProcessed) / elapsed.Seconds()
}

// GetRecentExamplesPerSecond returns the processing rate over the most recent progress reports
func (rs *RunStatistics) GetRecentExamplesPerSecond() float64 {
	rs.lock.Lock()
	defer rs.lock.Unlock()
	if rs.recentReportTimes == nil {
		return 0
	}
	newest := (rs.recentReportsHead + statisticRollingWindows - 1) % statisticRollingWindows
	oldest := rs.recentReportsHead
	if rs.recentReportTimes[oldest].IsZero() {
		oldest = 0
	}
	elapsed := rs.recentReportTimes[newest].Sub(rs.recentReportTimes[oldest])
	if elapsed <= 0 {
		return 0
	}
	return float64(rs.recentReportCounts[newest]-rs.recentReportCounts[oldest]) / elapsed.Seconds()
}

// GetJoinRuntime returns how long it took for every worker to register
func (rs *RunStatistics) GetJoinRuntime() time.Duration {
	rs.lock.Lock()
	defer rs.lock.Unlock()
	return rs.joinRuntime
}

// GetAggregationWaitRuntime returns how long the coordinator waited on the aggregator after every worker finished
func (rs *RunStatistics) GetAggregationWaitRuntime() time.Duration {
	rs.lock.Lock()
	defer rs.lock.Unlock()
	return rs.aggregationWaitRuntime
}
