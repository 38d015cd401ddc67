package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Skip reasons used as label values.
const (
	SkipReasonLength = "length_mismatch"
)

var (
	// Transmission metrics
	packetsSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "udpreplay_packets_sent_total",
		Help: "Total datagrams written to the socket",
	})

	bytesSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "udpreplay_bytes_sent_total",
		Help: "Total payload bytes written to the socket",
	})

	sendErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "udpreplay_send_errors_total",
		Help: "Total datagram writes that failed",
	})

	packetSizeBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "udpreplay_packet_size_bytes",
		Help:    "Size of transmitted payloads in bytes",
		Buckets: prometheus.ExponentialBuckets(4, 2, 14), // 4B to 32KB
	})

	// Source metrics
	recordsReadTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "udpreplay_records_read_total",
		Help: "Total records parsed from the source file",
	})

	recordsSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "udpreplay_records_skipped_total",
		Help: "Total records read but not transmitted",
	}, []string{"reason"})

	// Pacing metrics
	targetFrequency = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "udpreplay_target_frequency_hz",
		Help: "Configured send frequency in hertz",
	})

	realizedFrequency = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "udpreplay_realized_frequency_hz",
		Help: "Measured frequency of the previous send cycle in hertz",
	})

	pacerOverrunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "udpreplay_pacer_overruns_total",
		Help: "Cycles whose work took at least a full period",
	})
)

// RecordPacketSent accounts for one successful datagram of n bytes.
func RecordPacketSent(n int) {
	packetsSentTotal.Inc()
	bytesSentTotal.Add(float64(n))
	packetSizeBytes.Observe(float64(n))
}

// IncrementSendErrors counts a failed datagram write.
func IncrementSendErrors() {
	sendErrorsTotal.Inc()
}

// IncrementRecordsRead counts one parsed record.
func IncrementRecordsRead() {
	recordsReadTotal.Inc()
}

// IncrementRecordsSkipped counts a record dropped for reason.
func IncrementRecordsSkipped(reason string) {
	recordsSkippedTotal.WithLabelValues(reason).Inc()
}

// SetTargetFrequency publishes the configured frequency.
func SetTargetFrequency(hz float64) {
	targetFrequency.Set(hz)
}

// SetRealizedFrequency publishes the last measured cycle frequency.
func SetRealizedFrequency(hz float64) {
	realizedFrequency.Set(hz)
}

// IncrementPacerOverruns counts one cycle that ran behind schedule.
func IncrementPacerOverruns() {
	pacerOverrunsTotal.Inc()
}
