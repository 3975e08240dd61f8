package task

import (
	"context"
	"time"

	domain "github.com/example/task-tracker/domain/task"
)

// closedStatuses never count as overdue or due today.
var closedStatuses = []domain.Status{domain.StatusCompleted, domain.StatusCancelled}

// statsTimeout bounds a shared statistics computation.
const statsTimeout = 30 * time.Second

// Stats summarizes the owner's tasks.
//
// The six counts are separate store reads with no snapshot between them, so
// a concurrent write can make the numbers disagree slightly. Concurrent calls
// for the same owner share one computation, which is detached from any single
// caller's cancellation. A caller whose ctx ends stops waiting on its own.
func (s *Service) Stats(ctx context.Context, ownerID string) (*domain.Stats, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, ownerID); ok {
			return cached, nil
		}
	}

	ch := s.stats.DoChan(ownerID, func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), statsTimeout)
		defer cancel()

		now := s.now()
		st, err := s.computeStats(shared, ownerID, now)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if maxAge := s.cacheWindow(shared, ownerID, now); maxAge > 0 {
				s.cache.Set(shared, ownerID, st, maxAge)
			}
		}
		return st, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.Stats).Clone(), nil
	}
}

// cacheWindow is how long stats computed at now stay correct without a
// write: until the next open task falls overdue or the day rolls over,
// whichever comes first. It returns 0 when the result must not be cached.
func (s *Service) cacheWindow(ctx context.Context, ownerID string, now time.Time) time.Duration {
	_, until := dayBounds(now, s.loc)

	next, err := s.store.Find(ctx, domain.Query{
		Filter: domain.Filter{Owner: ownerID, DueFrom: &now, StatusNotIn: closedStatuses},
		Sort:   domain.Sort{Field: domain.SortDueDate},
		Page:   1,
		Limit:  1,
	})
	if err != nil {
		return 0
	}
	if len(next) == 1 && next[0].DueDate != nil && next[0].DueDate.Before(until) {
		// Overdue is dueDate < now, so the count moves just after the due instant.
		until = next[0].DueDate.Add(time.Millisecond)
	}
	return until.Sub(now)
}

func (s *Service) computeStats(ctx context.Context, ownerID string, now time.Time) (*domain.Stats, error) {
	startOfDay, startOfTomorrow := dayBounds(now, s.loc)
	owned := domain.Filter{Owner: ownerID}

	st := &domain.Stats{}
	var err error

	if st.Total, err = s.store.Count(ctx, owned); err != nil {
		return nil, domain.WrapStoreError("count", err)
	}
	if st.ByStatus, err = s.store.CountBy(ctx, owned, domain.GroupByStatus); err != nil {
		return nil, domain.WrapStoreError("count by", err)
	}
	if st.ByPriority, err = s.store.CountBy(ctx, owned, domain.GroupByPriority); err != nil {
		return nil, domain.WrapStoreError("count by", err)
	}
	if st.ByCategory, err = s.store.CountBy(ctx, owned, domain.GroupByCategory); err != nil {
		return nil, domain.WrapStoreError("count by", err)
	}

	overdue := domain.Filter{Owner: ownerID, DueBefore: &now, StatusNotIn: closedStatuses}
	if st.Overdue, err = s.store.Count(ctx, overdue); err != nil {
		return nil, domain.WrapStoreError("count", err)
	}

	dueToday := domain.Filter{Owner: ownerID, DueFrom: &startOfDay, DueBefore: &startOfTomorrow, StatusNotIn: closedStatuses}
	if st.DueToday, err = s.store.Count(ctx, dueToday); err != nil {
		return nil, domain.WrapStoreError("count", err)
	}

	return st, nil
}

// dayBounds returns the start of the day containing t in loc and the start
// of the following day.
func dayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}
