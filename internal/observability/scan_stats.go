package observability

import (
	"sort"
	"sync"
	"time"
)

// TableScanStats accumulates how queries touch one table: how many leaves
// pruning eliminated versus scanned. A table with a low pruned share is a
// candidate for different partition columns.
type TableScanStats struct {
	Table         string    `json:"table"`
	Queries       int64     `json:"queries"`
	LeavesScanned int64     `json:"leaves_scanned"`
	LeavesPruned  int64     `json:"leaves_pruned"`
	LastQuery     time.Time `json:"last_query"`
}

// ScanStats tracks scan statistics across tables. All methods are safe for
// concurrent use.
type ScanStats struct {
	mu     sync.Mutex
	tables map[string]*TableScanStats
}

func NewScanStats() *ScanStats {
	return &ScanStats{tables: make(map[string]*TableScanStats)}
}

// Record adds one query's scan outcome for a table.
func (s *ScanStats) Record(table string, scanned, pruned int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.tables[table]
	if !ok {
		st = &TableScanStats{Table: table}
		s.tables[table] = st
	}
	st.Queries++
	st.LeavesScanned += int64(scanned)
	st.LeavesPruned += int64(pruned)
	st.LastQuery = time.Now()
}

// Snapshot returns a copy of all per-table stats, most-queried first.
func (s *ScanStats) Snapshot() []TableScanStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TableScanStats, 0, len(s.tables))
	for _, st := range s.tables {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Queries != out[j].Queries {
			return out[i].Queries > out[j].Queries
		}
		return out[i].Table < out[j].Table
	})
	return out
}
