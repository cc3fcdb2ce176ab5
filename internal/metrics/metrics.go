package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "brewprint_"

	ResultSuccess = "success"
	ResultError   = "error"
)

var (
	registerOnce sync.Once

	printJobs        *prometheus.CounterVec
	printJobDuration *prometheus.HistogramVec
	connectAttempts  *prometheus.CounterVec
	bytesWritten     *prometheus.CounterVec
)

// Init registers the printer metrics with reg. Later calls are no-ops.
func Init(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		printJobs = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "print_jobs_total",
				Help: "Total print jobs by printer role and result",
			},
			[]string{"role", "result"},
		)
		printJobDuration = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "print_job_duration_seconds",
				Help:    "Print job latency in seconds, connection included",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"role"},
		)
		connectAttempts = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "connect_attempts_total",
				Help: "Total printer connection attempts by role and result",
			},
			[]string{"role", "result"},
		)
		bytesWritten = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "bytes_written_total",
				Help: "Command bytes delivered to printers by role and delivery method",
			},
			[]string{"role", "method"},
		)

		reg.MustRegister(printJobs, printJobDuration, connectAttempts, bytesWritten)
	})
}

// ObservePrintJob records one finished print job.
func ObservePrintJob(role, result string, duration time.Duration) {
	if printJobs == nil {
		return
	}
	printJobs.WithLabelValues(role, result).Inc()
	printJobDuration.WithLabelValues(role).Observe(duration.Seconds())
}

// IncConnectAttempt records one transport open attempt.
func IncConnectAttempt(role, result string) {
	if connectAttempts == nil {
		return
	}
	connectAttempts.WithLabelValues(role, result).Inc()
}

// AddBytesWritten records delivered command bytes.
func AddBytesWritten(role, method string, n int) {
	if bytesWritten == nil {
		return
	}
	bytesWritten.WithLabelValues(role, method).Add(float64(n))
}
