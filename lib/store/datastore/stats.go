package datastore

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ValentinKolb/objstore/lib/db/util"
	"github.com/VictoriaMetrics/metrics"
	gometrics "github.com/rcrowley/go-metrics"
)

type opKind int

const (
	opCreateObject opKind = iota
	opMarkForUpdate
	opGetObject
	opGetObjectForUpdate
	opSetObject
	opSetObjects
	opRemoveObject
	opGetBinding
	opSetBinding
	opRemoveBinding
	opNextBoundName
	numOps
)

var opNames = [numOps]string{
	"createObject",
	"markForUpdate",
	"getObject",
	"getObjectForUpdate",
	"setObject",
	"setObjects",
	"removeObject",
	"getBinding",
	"setBinding",
	"removeBinding",
	"nextBoundName",
}

// storeStats collects the operation counters of one store. Every store has
// its own metrics.Set so several stores can live in one process.
type storeStats struct {
	set *metrics.Set
	ops [numOps]*metrics.Counter

	readBytes      *metrics.Counter
	readObjects    *metrics.Counter
	writtenBytes   *metrics.Counter
	writtenObjects *metrics.Counter

	allocFast      *metrics.Counter
	allocSlow      *metrics.Counter
	blocksCreated  *metrics.Counter
	blocksExtended *metrics.Counter
	blocksRemoved  *metrics.Counter

	joins    *metrics.Counter
	commits  *metrics.Counter
	aborts   *metrics.Counter
	readOnly *metrics.Counter

	objectSizes    *util.SizeHistogram
	objectSizeHist *metrics.Histogram
	sessionTime    gometrics.Timer
	prepareRate    gometrics.Meter
}

func newStoreStats() *storeStats {
	set := metrics.NewSet()
	st := &storeStats{
		set:            set,
		readBytes:      set.NewCounter("objstore_read_bytes_total"),
		readObjects:    set.NewCounter("objstore_read_objects_total"),
		writtenBytes:   set.NewCounter("objstore_written_bytes_total"),
		writtenObjects: set.NewCounter("objstore_written_objects_total"),
		allocFast:      set.NewCounter(`objstore_allocations_total{path="fast"}`),
		allocSlow:      set.NewCounter(`objstore_allocations_total{path="slow"}`),
		blocksCreated:  set.NewCounter("objstore_free_blocks_created_total"),
		blocksExtended: set.NewCounter("objstore_free_blocks_extended_total"),
		blocksRemoved:  set.NewCounter("objstore_free_blocks_removed_total"),
		joins:          set.NewCounter("objstore_sessions_joined_total"),
		commits:        set.NewCounter("objstore_sessions_committed_total"),
		aborts:         set.NewCounter("objstore_sessions_aborted_total"),
		readOnly:       set.NewCounter("objstore_sessions_read_only_total"),
		objectSizes:    util.NewSizeHistogram(),
		objectSizeHist: set.NewHistogram("objstore_object_size_bytes"),
		sessionTime:    gometrics.NewTimer(),
		prepareRate:    gometrics.NewMeter(),
	}
	for i, name := range opNames {
		st.ops[i] = set.NewCounter(fmt.Sprintf(`objstore_operations_total{op=%q}`, name))
	}
	return st
}

func (st *storeStats) op(kind opKind) {
	st.ops[kind].Inc()
}

func (st *storeStats) read(n int) {
	st.readObjects.Inc()
	st.readBytes.Add(n)
}

func (st *storeStats) written(n int) {
	st.writtenObjects.Inc()
	st.writtenBytes.Add(n)
	st.objectSizes.AddSample(n)
	st.objectSizeHist.Update(float64(n))
}

func (st *storeStats) sessionEnded(started time.Time) {
	st.sessionTime.UpdateSince(started)
}

// stop releases the go-metrics meters, they are registered with a global ticker.
func (st *storeStats) stop() {
	st.sessionTime.Stop()
	st.prepareRate.Stop()
}

// summary returns the multi line text used by the periodic stats log
func (st *storeStats) summary() string {
	var sb strings.Builder
	sb.WriteString("operations:")
	for i, name := range opNames {
		sb.WriteString(fmt.Sprintf(" %s=%d", name, st.ops[i].Get()))
	}
	sb.WriteString(fmt.Sprintf("\nread: objects=%d bytes=%d, written: objects=%d bytes=%d",
		st.readObjects.Get(), st.readBytes.Get(), st.writtenObjects.Get(), st.writtenBytes.Get()))
	sb.WriteString(fmt.Sprintf("\nobject sizes: %s", st.objectSizes))
	sb.WriteString(fmt.Sprintf("\nallocations: fast=%d slow=%d, blocks: created=%d extended=%d removed=%d",
		st.allocFast.Get(), st.allocSlow.Get(), st.blocksCreated.Get(), st.blocksExtended.Get(), st.blocksRemoved.Get()))
	sb.WriteString(fmt.Sprintf("\nsessions: joined=%d committed=%d aborted=%d read-only=%d, duration mean=%s p99=%s, prepare rate=%.1f/s",
		st.joins.Get(), st.commits.Get(), st.aborts.Get(), st.readOnly.Get(),
		time.Duration(st.sessionTime.Mean()), time.Duration(st.sessionTime.Percentile(0.99)), st.prepareRate.Rate1()))
	return sb.String()
}

// writePrometheus writes all counters in the Prometheus text format
func (st *storeStats) writePrometheus(w io.Writer) {
	st.set.WritePrometheus(w)
}
