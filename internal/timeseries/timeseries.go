// Package timeseries implements the append-only metric journal keyed by
// (device_id, metric, timestamp), backed by the embedded ordered KV store.
package timeseries

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/neomind/edge/internal/mdl"
	"github.com/neomind/edge/internal/store"
)

const bucketTimeSeries = "timeseries"

// DataPoint is one observed value for a device metric.
type DataPoint struct {
	Timestamp int64          `json:"timestamp"`
	Value     mdl.MetricValue `json:"value"`
	Quality   *int32         `json:"quality,omitempty"`
}

// record is the on-disk shape, carrying the device/metric back out since
// ScanPrefix only returns values, not keys.
type record struct {
	DeviceID string         `json:"device_id"`
	Metric   string         `json:"metric"`
	Point    DataPoint      `json:"point"`
}

// Store is the time-series journal. Writes are best-effort: failures are
// logged and never propagated back into the ingestion path.
type Store struct {
	mu    sync.RWMutex
	table *store.Table[record]
	log   *zap.SugaredLogger

	// latestCache mirrors the most recent point per (device,metric) for
	// O(1) ValueProvider reads without a KV scan.
	latestCache map[string]DataPoint

	// remote is an optional Redis-backed mirror of latestCache, wired up
	// via ConnectRemoteCache; nil means local-only.
	remote *remoteCache
}

func key(deviceID, metric string, ts int64) string {
	return fmt.Sprintf("%s\x1f%s\x1f%020d", deviceID, metric, ts)
}

func prefixFor(deviceID, metric string) string {
	return fmt.Sprintf("%s\x1f%s\x1f", deviceID, metric)
}

// New constructs a time-series store against the given backend.
func New(s *store.Store, log *zap.SugaredLogger) (*Store, error) {
	tbl, err := store.NewTable[record](s, bucketTimeSeries)
	if err != nil {
		return nil, err
	}
	ts := &Store{table: tbl, log: log, latestCache: map[string]DataPoint{}}
	existing, err := tbl.List()
	if err == nil {
		for _, r := range existing {
			ts.updateCache(r.DeviceID, r.Metric, r.Point)
		}
	}
	return ts, nil
}

func (s *Store) updateCache(deviceID, metric string, p DataPoint) {
	s.mu.Lock()
	ck := deviceID + "\x1f" + metric
	cur, ok := s.latestCache[ck]
	newer := !ok || p.Timestamp >= cur.Timestamp
	if newer {
		s.latestCache[ck] = p
	}
	remote := s.remote
	s.mu.Unlock()

	if newer && remote != nil {
		remote.set(deviceID, metric, p)
	}
}

// Write appends a data point. Best-effort: on failure it logs and returns
// without a result, so the caller (ingestion path) never sees a storage
// error.
func (s *Store) Write(deviceID, metric string, p DataPoint) {
	rec := record{DeviceID: deviceID, Metric: metric, Point: p}
	if err := s.table.Put(key(deviceID, metric, p.Timestamp), rec); err != nil {
		if s.log != nil {
			s.log.Warnw("time-series write failed", "device_id", deviceID, "metric", metric, "error", err)
		}
		return
	}
	s.updateCache(deviceID, metric, p)
}

// Query returns every data point for (deviceID, metric) with
// t_start <= timestamp <= t_end, ascending by timestamp.
func (s *Store) Query(deviceID, metric string, tStart, tEnd int64) ([]DataPoint, error) {
	prefix := prefixFor(deviceID, metric)
	from := key(deviceID, metric, tStart)
	to := key(deviceID, metric, tEnd+1)
	recs, err := s.table.ScanRange(from, to)
	if err != nil {
		return nil, err
	}
	out := make([]DataPoint, 0, len(recs))
	for _, r := range recs {
		if r.DeviceID != deviceID || r.Metric != metric {
			continue
		}
		if r.Point.Timestamp < tStart || r.Point.Timestamp > tEnd {
			continue
		}
		out = append(out, r.Point)
	}
	_ = prefix
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

// Latest returns the most recent data point for (deviceID, metric), if any.
// The in-process cache is authoritative and always checked first; the
// optional Redis mirror is consulted only on a local miss, which happens
// right after a cold start before this process has observed a write of
// its own for that key.
func (s *Store) Latest(deviceID, metric string) (DataPoint, bool) {
	s.mu.RLock()
	p, ok := s.latestCache[deviceID+"\x1f"+metric]
	remote := s.remote
	s.mu.RUnlock()
	if ok {
		return p, true
	}
	if remote == nil {
		return DataPoint{}, false
	}
	p, ok = remote.get(deviceID, metric)
	if ok {
		s.updateCache(deviceID, metric, p)
	}
	return p, ok
}

// ListMetrics returns every distinct metric name recorded for a device.
func (s *Store) ListMetrics(deviceID string) ([]string, error) {
	recs, err := s.table.ScanPrefix(deviceID + "\x1f")
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []string
	for _, r := range recs {
		if r.DeviceID != deviceID {
			continue
		}
		if !seen[r.Metric] {
			seen[r.Metric] = true
			out = append(out, r.Metric)
		}
	}
	sort.Strings(out)
	return out, nil
}

// LatestFloat implements the rules package's ValueProvider contract
// directly against the cache, avoiding an import cycle with internal/rules.
func (s *Store) LatestFloat(deviceID, metric string) (float64, bool) {
	p, ok := s.Latest(deviceID, metric)
	if !ok {
		return 0, false
	}
	return p.Value.AsFloat64()
}
