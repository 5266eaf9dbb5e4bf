package ingestion

import (
	"errors"
	"time"
)

var (
	ErrStoreUnavailable = errors.New("store_unavailable")
	ErrRunInProgress    = errors.New("run_in_progress")
)

// BatchResult summarizes one ingestion pass over a batch of records.
type BatchResult struct {
	Success   bool      `json:"success"`
	Processed int       `json:"processed"`
	Added     int       `json:"added"`
	Updated   int       `json:"updated"`
	Errors    []string  `json:"errors"`
	Warnings  []string  `json:"warnings"`
	Total     int       `json:"total"`
	Timestamp time.Time `json:"timestamp"`
}

// succeeded applies the majority rule: fewer errors than half the batch.
func succeeded(errorCount, total int) bool {
	return float64(errorCount) < float64(total)/2
}

func newResult(total int, month time.Time) BatchResult {
	return BatchResult{
		Errors:    []string{},
		Warnings:  []string{},
		Total:     total,
		Timestamp: month,
	}
}
