// dashboard.go — сводка для персонала: счётчики и короткие списки заявок.
package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/luigimeli-max/sito-parco-verismo/internal/domain/model"
)

// Размеры списков сводки.
const (
	dashboardUrgentLimit    = 10
	dashboardOverdueLimit   = 10
	dashboardRecentLimit    = 15
	dashboardCancelledLimit = 15
	// dashboardOverdueScan — сколько старейших активных заявок проверяется на просрочку
	dashboardOverdueScan = 200
	// dashboardRecentDays — окно счётчика новых заявок
	dashboardRecentDays = 7
)

// Dashboard — сводка по заявкам. Списки никогда не nil.
type Dashboard struct {
	Total         int
	ByStatus      map[model.Status]int
	Urgent        int
	LastWeek      int
	UrgentList    []*model.Request
	OverdueList   []*model.Request
	RecentList    []*model.Request
	CancelledList []*model.Request
	GeneratedAt   time.Time
}

// Dashboard собирает сводку, выполняя запросы параллельно.
func (s *TriageService) Dashboard(ctx context.Context) (*Dashboard, error) {
	now := s.now()
	d := &Dashboard{GeneratedAt: now}

	y, m, day := now.In(s.loc).Date()
	since := time.Date(y, m, day, 0, 0, 0, 0, s.loc).AddDate(0, 0, -dashboardRecentDays)

	var active []*model.Request

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		counts, err := s.repo.CountByStatus(gctx)
		if err != nil {
			return err
		}
		d.ByStatus = counts
		return nil
	})
	g.Go(func() error {
		n, err := s.repo.CountUrgent(gctx)
		d.Urgent = n
		return err
	})
	g.Go(func() error {
		n, err := s.repo.CountSince(gctx, since)
		d.LastWeek = n
		return err
	})
	g.Go(func() error {
		list, err := s.repo.ListUrgent(gctx, dashboardUrgentLimit)
		d.UrgentList = list
		return err
	})
	g.Go(func() error {
		list, err := s.repo.ListActive(gctx, true, dashboardOverdueScan)
		active = list
		return err
	})
	g.Go(func() error {
		list, err := s.repo.ListActive(gctx, false, dashboardRecentLimit)
		d.RecentList = list
		return err
	})
	g.Go(func() error {
		list, err := s.repo.ListCancelled(gctx, dashboardCancelledLimit)
		d.CancelledList = list
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("сводка заявок: %w", err)
	}

	d.OverdueList = make([]*model.Request, 0)
	for _, r := range active {
		if len(d.OverdueList) == dashboardOverdueLimit {
			break
		}
		if r.IsOverdue() {
			d.OverdueList = append(d.OverdueList, r)
		}
	}

	if d.ByStatus == nil {
		d.ByStatus = make(map[model.Status]int, len(model.AllStatuses))
	}
	for _, st := range model.AllStatuses {
		if _, ok := d.ByStatus[st]; !ok {
			d.ByStatus[st] = 0
		}
		d.Total += d.ByStatus[st]
	}
	d.UrgentList = nonNilList(d.UrgentList)
	d.RecentList = nonNilList(d.RecentList)
	d.CancelledList = nonNilList(d.CancelledList)
	return d, nil
}

func nonNilList(list []*model.Request) []*model.Request {
	if list == nil {
		return make([]*model.Request, 0)
	}
	return list
}
