package db

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// IngestStats keeps running counts of ingest outcomes and logs a summary on a
// fixed period.
type IngestStats struct {
	sync.Mutex
	StoredCount    int
	MalformedCount int
	FailedCount    int
}

// NewIngestStats starts the periodic summary logger.
func NewIngestStats(logger *zap.SugaredLogger, interval time.Duration) *IngestStats {
	stats := &IngestStats{}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			stats.Lock()
			logger.Infow("ingest summary",
				"stored", stats.StoredCount,
				"malformed", stats.MalformedCount,
				"failed", stats.FailedCount)
			stats.Unlock()
		}
	}()
	return stats
}

func (s *IngestStats) IncrementStored() {
	s.Lock()
	s.StoredCount++
	s.Unlock()
}

func (s *IngestStats) IncrementMalformed() {
	s.Lock()
	s.MalformedCount++
	s.Unlock()
}

func (s *IngestStats) IncrementFailed() {
	s.Lock()
	s.FailedCount++
	s.Unlock()
}
