package zstdsafe

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds cheap process-wide counters updated on every native call.
// All fields are read and written atomically; read them through Snapshot.
type Metrics struct {
	CompressCalls      int64
	CompressErrors     int64
	CompressInBytes    int64
	CompressOutBytes   int64
	DecompressCalls    int64
	DecompressErrors   int64
	DecompressInBytes  int64
	DecompressOutBytes int64
	ContextsCreated    int64
	ContextsReleased   int64
	DictsCreated       int64
	DictsReleased      int64
}

// DefaultMetrics is the counter set the package updates. There is exactly
// one; exposing it as a variable keeps the hot path to a handful of
// atomic adds.
var DefaultMetrics Metrics

// Snapshot returns a consistent-enough copy for reporting. Individual
// counters are read atomically; the set as a whole is not a transaction.
func (m *Metrics) Snapshot() Metrics {
	return Metrics{
		CompressCalls:      atomic.LoadInt64(&m.CompressCalls),
		CompressErrors:     atomic.LoadInt64(&m.CompressErrors),
		CompressInBytes:    atomic.LoadInt64(&m.CompressInBytes),
		CompressOutBytes:   atomic.LoadInt64(&m.CompressOutBytes),
		DecompressCalls:    atomic.LoadInt64(&m.DecompressCalls),
		DecompressErrors:   atomic.LoadInt64(&m.DecompressErrors),
		DecompressInBytes:  atomic.LoadInt64(&m.DecompressInBytes),
		DecompressOutBytes: atomic.LoadInt64(&m.DecompressOutBytes),
		ContextsCreated:    atomic.LoadInt64(&m.ContextsCreated),
		ContextsReleased:   atomic.LoadInt64(&m.ContextsReleased),
		DictsCreated:       atomic.LoadInt64(&m.DictsCreated),
		DictsReleased:      atomic.LoadInt64(&m.DictsReleased),
	}
}

// ContextsLive returns created minus released contexts. A steadily growing
// value points at missing Release calls.
func (m *Metrics) ContextsLive() int64 {
	return atomic.LoadInt64(&m.ContextsCreated) - atomic.LoadInt64(&m.ContextsReleased)
}

func metricCompress(inBytes, outBytes int, failed bool) {
	atomic.AddInt64(&DefaultMetrics.CompressCalls, 1)
	atomic.AddInt64(&DefaultMetrics.CompressInBytes, int64(inBytes))
	atomic.AddInt64(&DefaultMetrics.CompressOutBytes, int64(outBytes))
	if failed {
		atomic.AddInt64(&DefaultMetrics.CompressErrors, 1)
	}
}

func metricDecompress(inBytes, outBytes int, failed bool) {
	atomic.AddInt64(&DefaultMetrics.DecompressCalls, 1)
	atomic.AddInt64(&DefaultMetrics.DecompressInBytes, int64(inBytes))
	atomic.AddInt64(&DefaultMetrics.DecompressOutBytes, int64(outBytes))
	if failed {
		atomic.AddInt64(&DefaultMetrics.DecompressErrors, 1)
	}
}

func metricContextCreated()  { atomic.AddInt64(&DefaultMetrics.ContextsCreated, 1) }
func metricContextReleased() { atomic.AddInt64(&DefaultMetrics.ContextsReleased, 1) }
func metricDictCreated()     { atomic.AddInt64(&DefaultMetrics.DictsCreated, 1) }
func metricDictReleased()    { atomic.AddInt64(&DefaultMetrics.DictsReleased, 1) }

// Collector adapts DefaultMetrics to a prometheus.Collector so services
// embedding this package can register it alongside their own metrics.
type Collector struct {
	compressCalls      *prometheus.Desc
	compressErrors     *prometheus.Desc
	compressInBytes    *prometheus.Desc
	compressOutBytes   *prometheus.Desc
	decompressCalls    *prometheus.Desc
	decompressErrors   *prometheus.Desc
	decompressInBytes  *prometheus.Desc
	decompressOutBytes *prometheus.Desc
	contextsLive       *prometheus.Desc
	dictsLive          *prometheus.Desc
}

// NewCollector builds a collector over DefaultMetrics with the given
// metric namespace (e.g. "myservice").
func NewCollector(namespace string) *Collector {
	fqName := func(name string) string {
		return prometheus.BuildFQName(namespace, "zstd", name)
	}
	return &Collector{
		compressCalls:      prometheus.NewDesc(fqName("compress_calls_total"), "Native streaming and one-shot compression calls.", nil, nil),
		compressErrors:     prometheus.NewDesc(fqName("compress_errors_total"), "Failed compression calls.", nil, nil),
		compressInBytes:    prometheus.NewDesc(fqName("compress_in_bytes_total"), "Uncompressed bytes consumed by compression.", nil, nil),
		compressOutBytes:   prometheus.NewDesc(fqName("compress_out_bytes_total"), "Compressed bytes produced by compression.", nil, nil),
		decompressCalls:    prometheus.NewDesc(fqName("decompress_calls_total"), "Native streaming and one-shot decompression calls.", nil, nil),
		decompressErrors:   prometheus.NewDesc(fqName("decompress_errors_total"), "Failed decompression calls.", nil, nil),
		decompressInBytes:  prometheus.NewDesc(fqName("decompress_in_bytes_total"), "Compressed bytes consumed by decompression.", nil, nil),
		decompressOutBytes: prometheus.NewDesc(fqName("decompress_out_bytes_total"), "Uncompressed bytes produced by decompression.", nil, nil),
		contextsLive:       prometheus.NewDesc(fqName("contexts_live"), "Native contexts created and not yet released.", nil, nil),
		dictsLive:          prometheus.NewDesc(fqName("dicts_live"), "Digested dictionaries created and not yet released.", nil, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.compressCalls
	ch <- c.compressErrors
	ch <- c.compressInBytes
	ch <- c.compressOutBytes
	ch <- c.decompressCalls
	ch <- c.decompressErrors
	ch <- c.decompressInBytes
	ch <- c.decompressOutBytes
	ch <- c.contextsLive
	ch <- c.dictsLive
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := DefaultMetrics.Snapshot()
	ch <- prometheus.MustNewConstMetric(c.compressCalls, prometheus.CounterValue, float64(s.CompressCalls))
	ch <- prometheus.MustNewConstMetric(c.compressErrors, prometheus.CounterValue, float64(s.CompressErrors))
	ch <- prometheus.MustNewConstMetric(c.compressInBytes, prometheus.CounterValue, float64(s.CompressInBytes))
	ch <- prometheus.MustNewConstMetric(c.compressOutBytes, prometheus.CounterValue, float64(s.CompressOutBytes))
	ch <- prometheus.MustNewConstMetric(c.decompressCalls, prometheus.CounterValue, float64(s.DecompressCalls))
	ch <- prometheus.MustNewConstMetric(c.decompressErrors, prometheus.CounterValue, float64(s.DecompressErrors))
	ch <- prometheus.MustNewConstMetric(c.decompressInBytes, prometheus.CounterValue, float64(s.DecompressInBytes))
	ch <- prometheus.MustNewConstMetric(c.decompressOutBytes, prometheus.CounterValue, float64(s.DecompressOutBytes))
	ch <- prometheus.MustNewConstMetric(c.contextsLive, prometheus.GaugeValue, float64(s.ContextsCreated-s.ContextsReleased))
	ch <- prometheus.MustNewConstMetric(c.dictsLive, prometheus.GaugeValue, float64(s.DictsCreated-s.DictsReleased))
}
