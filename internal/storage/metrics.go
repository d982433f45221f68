// Package storage implements sinks that persist exported event batches.
package storage

// MetricsCollector defines metrics operations for storage.
type MetricsCollector interface {
	IncFilesWritten(backend string, format string, status string)
	ObserveFileSize(backend string, format string, size float64)
	ObserveStorageWriteDuration(backend string, duration float64)
	IncStorageErrors(backend string, operation string)
}

type nopMetrics struct{}

func (nopMetrics) IncFilesWritten(string, string, string) {}
func (nopMetrics) ObserveFileSize(string, string, float64) {}
func (nopMetrics) ObserveStorageWriteDuration(string, float64) {}
func (nopMetrics) IncStorageErrors(string, string) {}

func metricsOrNop(m MetricsCollector) MetricsCollector {
	if m == nil {
		return nopMetrics{}
	}
	return m
}
