package catalogue

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/roach88/brickbook/internal/ir"
)

// DefaultLogCacheSize is the number of revision log entries kept in memory.
const DefaultLogCacheSize = 4096

// newLogCache returns nil, disabling the cache, when size is not positive.
func newLogCache(size int) *lru.Cache[int64, ir.LogEntry] {
	if size <= 0 {
		return nil
	}
	c, err := lru.New[int64, ir.LogEntry](size)
	if err != nil {
		return nil
	}
	return c
}

// logEntry reads a log entry through the cache. Log rows are never changed
// after commit, so a cached entry cannot go stale.
func (s *Service) logEntry(ctx context.Context, logID int64) (ir.LogEntry, error) {
	if s.entries != nil {
		if e, ok := s.entries.Get(logID); ok {
			logCacheHits.Inc()
			return e, nil
		}
	}
	e, err := s.repo.LogEntry(ctx, logID)
	if err != nil {
		return ir.LogEntry{}, err
	}
	s.remember(e)
	return e, nil
}

func (s *Service) remember(entries ...ir.LogEntry) {
	if s.entries == nil {
		return
	}
	for _, e := range entries {
		s.entries.Add(e.ID, e)
	}
}
