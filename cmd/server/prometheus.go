package main

import (
	"github.com/KernelFreeze/photondb/pagestore"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Prometheus metrics (gauges)
	promMetrics = struct {
		writeAmp           prometheus.Gauge
		writebufHitRate    prometheus.Gauge
		pageCacheHitRate   prometheus.Gauge
		readerCacheHitRate prometheus.Gauge
		liveBytes          prometheus.Gauge
		physicalBytes      prometheus.Gauge
		garbageRatio       prometheus.Gauge
		reclaimedFiles     prometheus.Gauge
	}{
		writeAmp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "photondb_write_amplification",
			Help: "Rewrite plus compaction bytes per flushed byte",
		}),
		writebufHitRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "photondb_writebuf_hit_rate",
			Help: "Fraction of reads served from the write buffer",
		}),
		pageCacheHitRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "photondb_page_cache_hit_rate",
			Help: "Page cache lookup hit fraction",
		}),
		readerCacheHitRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "photondb_file_reader_cache_hit_rate",
			Help: "File reader cache lookup hit fraction",
		}),
		liveBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "photondb_live_bytes",
			Help: "Bytes of pages still reachable",
		}),
		physicalBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "photondb_physical_bytes",
			Help: "Bytes occupied on disk across all segments",
		}),
		garbageRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "photondb_garbage_ratio",
			Help: "Fraction of physical bytes no longer reachable",
		}),
		reclaimedFiles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "photondb_reclaimed_files",
			Help: "Segments reclaimed since the run started",
		}),
	}
)

func initPrometheusMetrics() {
	prometheus.MustRegister(
		promMetrics.writeAmp,
		promMetrics.writebufHitRate,
		promMetrics.pageCacheHitRate,
		promMetrics.readerCacheHitRate,
		promMetrics.liveBytes,
		promMetrics.physicalBytes,
		promMetrics.garbageRatio,
		promMetrics.reclaimedFiles,
	)
}

func hitRate(hit, miss uint64) float64 {
	if hit+miss == 0 {
		return 0
	}
	return float64(hit) / float64(hit+miss)
}

func updatePrometheusMetrics(stats pagestore.StoreStats, state map[string]interface{}) {
	promMetrics.writeAmp.Set(stats.WriteAmp())
	promMetrics.writebufHitRate.Set(hitRate(stats.Writebuf.ReadInBuf, stats.Writebuf.ReadInFile))
	promMetrics.pageCacheHitRate.Set(hitRate(stats.PageCache.LookupHit, stats.PageCache.LookupMiss))
	promMetrics.readerCacheHitRate.Set(hitRate(stats.FileReaderCache.LookupHit, stats.FileReaderCache.LookupMiss))

	if liveBytes, ok := state["liveBytes"].(int); ok {
		promMetrics.liveBytes.Set(float64(liveBytes))
	}
	if physicalBytes, ok := state["physicalBytes"].(int); ok {
		promMetrics.physicalBytes.Set(float64(physicalBytes))
	}
	if garbageRatio, ok := state["garbageRatio"].(float64); ok {
		promMetrics.garbageRatio.Set(garbageRatio)
	}
	if reclaimed, ok := state["reclaimedFiles"].(int); ok {
		promMetrics.reclaimedFiles.Set(float64(reclaimed))
	}
}
