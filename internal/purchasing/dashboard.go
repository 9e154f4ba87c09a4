package purchasing

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Dashboard aggregates order counts per status and the outstanding owed
// total. The two queries run concurrently.
func (s *Service) Dashboard(ctx context.Context) (DashboardSummary, error) {
	var summary DashboardSummary
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		counts, err := s.repo.CountByStatus(ctx)
		if err != nil {
			return err
		}
		summary.DraftCount = counts[StatusDraft]
		summary.SentCount = counts[StatusSent]
		summary.ReceivedCount = counts[StatusReceived]
		summary.CancelledCount = counts[StatusCancelled]
		return nil
	})
	g.Go(func() error {
		outstanding, err := s.repo.OutstandingTotal(ctx)
		if err != nil {
			return err
		}
		summary.Outstanding = outstanding
		return nil
	})

	if err := g.Wait(); err != nil {
		return DashboardSummary{}, err
	}
	return summary, nil
}
