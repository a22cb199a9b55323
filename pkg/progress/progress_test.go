package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSinkFuncAdaptsPlainFunction(t *testing.T) {
	var got Event
	var sink Sink = SinkFunc(func(e Event) { got = e })
	sink.Update(Event{FileName: "a.txt", BytesDone: 5})
	assert.Equal(t, "a.txt", got.FileName)
	assert.Equal(t, uint64(5), got.BytesDone)
}

func TestAggregatorUpdateWithoutReporterDoesNotPanic(t *testing.T) {
	a := NewAggregator(nil)
	assert.NotPanics(t, func() {
		a.Update(Event{FileName: "a.txt", BytesDone: 1, BytesTotal: 10, State: StateActive})
	})
}

func TestAggregatorSnapshotAggregatesAcrossFiles(t *testing.T) {
	a := NewAggregator(nil)
	a.Update(Event{FileName: "a.txt", BytesDone: 10, BytesTotal: 10, State: StateCompleted})
	a.Update(Event{FileName: "b.txt", BytesDone: 5, BytesTotal: 10, State: StateActive})
	a.Update(Event{FileName: "c.txt", BytesDone: 0, BytesTotal: 10, State: StateFailed})
	a.Update(Event{FileName: "d.txt", BytesDone: 0, BytesTotal: 10, State: StateSkipped})

	s := a.Snapshot()
	assert.Equal(t, 1, s.CompletedFiles)
	assert.Equal(t, 1, s.ActiveFiles)
	assert.Equal(t, 1, s.FailedFiles)
	assert.Equal(t, 1, s.SkippedFiles)
	assert.Equal(t, uint64(40), s.TotalBytes)
	assert.Equal(t, uint64(15), s.TransferredBytes)
}

func TestAggregatorPendingCountsAsActive(t *testing.T) {
	a := NewAggregator(nil)
	a.Update(Event{FileName: "a.txt", BytesTotal: 10, State: StatePending})
	assert.Equal(t, 1, a.Snapshot().ActiveFiles)
}

func TestAggregatorLaterUpdateReplacesFileState(t *testing.T) {
	a := NewAggregator(nil)
	a.Update(Event{FileName: "a.txt", BytesDone: 2, BytesTotal: 10, State: StateActive})
	a.Update(Event{FileName: "a.txt", BytesDone: 10, BytesTotal: 10, State: StateCompleted})

	s := a.Snapshot()
	assert.Equal(t, 0, s.ActiveFiles)
	assert.Equal(t, 1, s.CompletedFiles)
	assert.Equal(t, uint64(10), s.TransferredBytes)
}

func TestAggregatorReporterFiresOnFirstUpdateThenThrottles(t *testing.T) {
	var reports []Summary
	a := NewAggregator(func(s Summary) { reports = append(reports, s) })

	a.Update(Event{FileName: "a.txt", BytesDone: 1, BytesTotal: 10, State: StateActive})
	require.Len(t, reports, 1)

	a.Update(Event{FileName: "a.txt", BytesDone: 2, BytesTotal: 10, State: StateActive})
	assert.Len(t, reports, 1, "a report within minReportInterval should be throttled")
}

func TestAggregatorReporterFiresAgainAfterThrottleWindow(t *testing.T) {
	var reports []Summary
	a := NewAggregator(func(s Summary) { reports = append(reports, s) })

	a.Update(Event{FileName: "a.txt", BytesDone: 1, BytesTotal: 10, State: StateActive})
	require.Len(t, reports, 1)

	time.Sleep(minReportInterval + 50*time.Millisecond)
	a.Update(Event{FileName: "a.txt", BytesDone: 2, BytesTotal: 10, State: StateActive})
	assert.Len(t, reports, 2)
}

func TestAggregatorSnapshotBypassesThrottle(t *testing.T) {
	a := NewAggregator(func(Summary) {})
	a.Update(Event{FileName: "a.txt", BytesDone: 1, BytesTotal: 10, State: StateActive})
	a.Update(Event{FileName: "a.txt", BytesDone: 2, BytesTotal: 10, State: StateActive})

	s := a.Snapshot()
	assert.Equal(t, uint64(2), s.TransferredBytes)
}
