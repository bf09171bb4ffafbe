package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters for requests, pipeline stages
// and job outcomes.
type Metrics struct {
	mu           sync.Mutex
	requestCount map[string]int64
	errorCount   map[string]int64
	stageCount   map[string]int64
	jobRetries   map[string]int64
	jobFailed    map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
		stageCount:   make(map[string]int64),
		jobRetries:   make(map[string]int64),
		jobFailed:    make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + strconv.Itoa(status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordStage increments the counter for a pipeline stage outcome.
func (m *Metrics) RecordStage(stage, outcome string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stageCount[stage+"|"+outcome]++
}

// RecordJobRetry increments the retry counter for a queue.
func (m *Metrics) RecordJobRetry(queue string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobRetries[queue]++
}

// RecordJobFailed increments the permanent-failure counter for a queue.
func (m *Metrics) RecordJobFailed(queue string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobFailed[queue]++
}

// StageCount returns the current count for a stage outcome.
func (m *Metrics) StageCount(stage, outcome string) int64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stageCount[stage+"|"+outcome]
}
