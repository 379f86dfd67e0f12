package tasks

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/diogo464/sonar-sub000/internal/catalog"
	"github.com/diogo464/sonar-sub000/internal/services"
)

const (
	// subscriptionCheckInterval is how often the controller scans for
	// due subscriptions.
	subscriptionCheckInterval = time.Minute
	// subscriptionDefaultInterval applies to subscriptions without an
	// explicit interval.
	subscriptionDefaultInterval = 4 * time.Hour
)

// DownloadRequester is the downloader surface the controller needs.
type DownloadRequester interface {
	Request(user catalog.UserID, id services.ExternalMediaID)
}

// SubscriptionController periodically re-submits each subscription's
// external id to the download orchestrator. New albums or tracks under a
// subscribed artist appear in the catalog through this loop.
type SubscriptionController struct {
	catalog    *catalog.Catalog
	downloader DownloadRequester
	logger     *log.Logger
}

// NewSubscriptionController creates a controller driving the given
// downloader.
func NewSubscriptionController(c *catalog.Catalog, downloader DownloadRequester, logger *log.Logger) *SubscriptionController {
	return &SubscriptionController{catalog: c, downloader: downloader, logger: logger}
}

// Run blocks until ctx is cancelled, scanning for due subscriptions.
func (s *SubscriptionController) Run(ctx context.Context) {
	ticker := time.NewTicker(subscriptionCheckInterval)
	defer ticker.Stop()

	s.tick(ctx, time.Now())
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.tick(ctx, now)
		}
	}
}

func (s *SubscriptionController) tick(ctx context.Context, now time.Time) {
	subscriptions, err := s.catalog.ListSubscriptions(ctx)
	if err != nil {
		s.logger.Error("failed to list subscriptions", "err", err)
		return
	}
	for _, subscription := range subscriptions {
		if !subscriptionDue(subscription, now) {
			continue
		}
		if err := s.Submit(ctx, subscription.User, subscription.ExternalID); err != nil {
			s.logger.Error("failed to submit subscription", "user", subscription.User, "external_id", subscription.ExternalID, "err", err)
		}
	}
}

// Submit re-submits a subscription's external id now and records the
// submission time.
func (s *SubscriptionController) Submit(ctx context.Context, user catalog.UserID, externalID string) error {
	s.downloader.Request(user, services.ExternalMediaID(externalID))
	return s.catalog.MarkSubscriptionSubmitted(ctx, user, externalID, time.Now())
}

func subscriptionDue(subscription catalog.Subscription, now time.Time) bool {
	if subscription.LastSubmitted.IsZero() {
		return true
	}
	interval := subscriptionDefaultInterval
	if subscription.HasInterval {
		interval = subscription.Interval
	}
	return now.Sub(subscription.LastSubmitted) >= interval
}
