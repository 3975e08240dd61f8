package task

// Stats summarizes one owner's tasks. The By* maps hold only values that
// occur at least once.
type Stats struct {
	Total      int64            `json:"total"`
	Overdue    int64            `json:"overdue"`
	DueToday   int64            `json:"dueToday"`
	ByStatus   map[string]int64 `json:"byStatus"`
	ByPriority map[string]int64 `json:"byPriority"`
	ByCategory map[string]int64 `json:"byCategory"`
}

// Clone returns a copy that shares no maps with s.
func (s *Stats) Clone() *Stats {
	if s == nil {
		return nil
	}
	c := *s
	c.ByStatus = copyCounts(s.ByStatus)
	c.ByPriority = copyCounts(s.ByPriority)
	c.ByCategory = copyCounts(s.ByCategory)
	return &c
}

func copyCounts(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
