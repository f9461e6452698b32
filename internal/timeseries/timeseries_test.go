package timeseries

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/neomind/edge/internal/mdl"
	"github.com/neomind/edge/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	t.Cleanup(store.CloseAll)
	dir := t.TempDir()
	s, err := store.Open(filepath.Join(dir, "ts.db"))
	require.NoError(t, err)
	ts, err := New(s, nil)
	require.NoError(t, err)
	return ts
}

func floatPoint(v float64, ts int64) DataPoint {
	return DataPoint{Timestamp: ts, Value: mdl.FloatValue(v)}
}

func TestWriteAndLatest(t *testing.T) {
	ts := newTestStore(t)

	ts.Write("dev1", "temperature", floatPoint(21.5, 100))
	ts.Write("dev1", "temperature", floatPoint(22.0, 200))
	ts.Write("dev1", "humidity", floatPoint(55, 150))

	p, ok := ts.Latest("dev1", "temperature")
	require.True(t, ok)
	require.Equal(t, int64(200), p.Timestamp)

	f, ok := ts.LatestFloat("dev1", "temperature")
	require.True(t, ok)
	require.Equal(t, 22.0, f)

	_, ok = ts.Latest("dev1", "pressure")
	require.False(t, ok)
}

func TestWriteOutOfOrderDoesNotRegressLatest(t *testing.T) {
	ts := newTestStore(t)

	ts.Write("dev1", "temperature", floatPoint(22.0, 200))
	ts.Write("dev1", "temperature", floatPoint(21.5, 100))

	p, ok := ts.Latest("dev1", "temperature")
	require.True(t, ok)
	require.Equal(t, int64(200), p.Timestamp, "an older point arriving after a newer one must not overwrite it")
}

func TestQueryReturnsAscendingWithinRange(t *testing.T) {
	ts := newTestStore(t)

	for _, ts2 := range []int64{300, 100, 200, 400} {
		ts.Write("dev1", "temperature", floatPoint(float64(ts2), ts2))
	}

	points, err := ts.Query("dev1", "temperature", 150, 350)
	require.NoError(t, err)
	require.Len(t, points, 2)
	require.Equal(t, int64(200), points[0].Timestamp)
	require.Equal(t, int64(300), points[1].Timestamp)
}

func TestListMetricsReturnsDistinctSortedNames(t *testing.T) {
	ts := newTestStore(t)

	ts.Write("dev1", "temperature", floatPoint(1, 1))
	ts.Write("dev1", "humidity", floatPoint(1, 1))
	ts.Write("dev1", "temperature", floatPoint(2, 2))
	ts.Write("dev2", "temperature", floatPoint(1, 1))

	metrics, err := ts.ListMetrics("dev1")
	require.NoError(t, err)
	require.Equal(t, []string{"humidity", "temperature"}, metrics)
}

func TestConnectRemoteCacheNoopOnEmptyURL(t *testing.T) {
	ts := newTestStore(t)
	require.NoError(t, ts.ConnectRemoteCache(""))
	require.Nil(t, ts.remote)
}
