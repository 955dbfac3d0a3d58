package scan

import (
	"context"
	"time"

	"taskpulse/internal/eventbus"
	"taskpulse/internal/model"
	"taskpulse/internal/notification"
	"taskpulse/internal/store"
	"taskpulse/pkg/logx"
)

// RunOnce executes one scan tick: query the selected buckets, derive
// notification IDs, suppress anything dispatched within the TTL, and hand
// the rest to the hub. A failing bucket query is logged and skipped for
// this tick; the next tick retries from scratch.
func (s *Service) RunOnce(ctx context.Context, checkTasks, checkProjects bool) Result {
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()

	started := time.Now()
	now := s.nowFn()
	var res Result

	if checkTasks {
		s.scanTaskBucket(ctx, now, &res, "overdue", func() ([]model.Task, error) {
			return s.store.OverdueTasks(ctx, now, store.TaskFilter{OnlyHigh: true, Limit: cfg.BucketLimit})
		}, func(t model.Task) notification.Notification {
			return notification.NewTaskOverdue(t, now)
		})

		s.scanTaskBucket(ctx, now, &res, "dueSoon", func() ([]model.Task, error) {
			return s.store.TasksDueBetween(ctx, now, now.Add(cfg.DueSoonWindow), store.TaskFilter{Limit: cfg.BucketLimit})
		}, func(t model.Task) notification.Notification {
			return notification.NewTaskDueSoon(t, now)
		})

		s.scanTaskBucket(ctx, now, &res, "startingSoon", func() ([]model.Task, error) {
			return s.store.TasksStartingBetween(ctx, now, now.Add(cfg.StartingSoonWindow), store.TaskFilter{Limit: cfg.BucketLimit})
		}, func(t model.Task) notification.Notification {
			return notification.NewTaskStartingSoon(t, now)
		})
	}

	if checkProjects {
		s.scanProjects(ctx, now, cfg, &res)
	}

	s.cache.prune(now)

	s.publish(eventbus.TypeScanCompleted, eventbus.ScanEvent{
		Dispatched: res.Dispatched,
		Deduped:    res.Deduped,
		Dropped:    res.Dropped,
		Took:       time.Since(started),
		At:         now,
	})
	return res
}

func (s *Service) scanTaskBucket(ctx context.Context, now time.Time, res *Result, bucket string,
	query func() ([]model.Task, error), build func(model.Task) notification.Notification,
) {
	tasks, err := query()
	if err != nil {
		s.log.Warn("task bucket query failed", logx.String("bucket", bucket), logx.Err(err))
		return
	}
	for _, t := range tasks {
		n := build(t)
		s.deliver(ctx, now, n, []string{t.AssigneeID}, res)
	}
}

func (s *Service) scanProjects(ctx context.Context, now time.Time, cfg Config, res *Result) {
	projects, err := s.store.ProjectsDueBetween(ctx, now, now.Add(cfg.ProjectWindow), "", cfg.BucketLimit)
	if err != nil {
		s.log.Warn("project bucket query failed", logx.Err(err))
		return
	}
	for _, p := range projects {
		n := notification.NewProjectDue(p, now)
		members, err := s.store.ProjectMembers(ctx, p.ID)
		if err != nil {
			s.log.Warn("project members query failed", logx.String("project", p.ID), logx.Err(err))
			continue
		}
		s.deliver(ctx, now, n, members, res)
	}
}

// deliver pushes n to every target user unless its ID was already
// dispatched within the TTL. The ID is marked even when every target is
// offline: the drop is final until the TTL lapses.
func (s *Service) deliver(ctx context.Context, now time.Time, n notification.Notification, users []string, res *Result) {
	id := n.ID()
	if s.cache.seen(ctx, id, now) {
		res.Deduped++
		s.publish(eventbus.TypeNotifyDeduped, eventbus.NotifyEvent{ID: id, At: now})
		return
	}
	s.cache.mark(ctx, id, now)

	delivered := 0
	for _, u := range users {
		if u == "" {
			continue
		}
		delivered += s.hub.Dispatch(u, n)
		s.publish(eventbus.TypeNotifyDispatched, eventbus.NotifyEvent{ID: id, UserID: u, At: now})
	}
	if delivered == 0 {
		res.Dropped++
		s.publish(eventbus.TypeNotifyDropped, eventbus.NotifyEvent{ID: id, At: now})
		return
	}
	res.Dispatched++
}
