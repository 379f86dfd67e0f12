package tasks

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/diogo464/sonar-sub000/internal/catalog"
	"github.com/diogo464/sonar-sub000/internal/services"
	"github.com/diogo464/sonar-sub000/internal/shared"
)

// fakeRequester records download requests.
type fakeRequester struct {
	mu       sync.Mutex
	requests []services.ExternalMediaID
}

func (r *fakeRequester) Request(user catalog.UserID, id services.ExternalMediaID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, id)
}

func (r *fakeRequester) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

func TestSubscriptionController(t *testing.T) {
	ctx := context.Background()

	t.Run("NewSubscriptionIsDue", func(t *testing.T) {
		c := newTestCatalog(t)
		user := createTestUser(t, c)
		requester := &fakeRequester{}
		controller := NewSubscriptionController(c, requester, shared.NewLogger(io.Discard))

		_, err := c.CreateSubscription(ctx, catalog.SubscriptionCreate{
			User:       user.ID,
			ExternalID: "fake:artist:1",
		})
		if err != nil {
			t.Fatalf("failed to create subscription: %v", err)
		}

		controller.tick(ctx, time.Now())
		if requester.count() != 1 {
			t.Fatalf("expected one request, got %d", requester.count())
		}

		// just submitted; not due again before the interval passes
		controller.tick(ctx, time.Now())
		if requester.count() != 1 {
			t.Errorf("expected no re-submission, got %d requests", requester.count())
		}
	})

	t.Run("ExplicitIntervalRespected", func(t *testing.T) {
		c := newTestCatalog(t)
		user := createTestUser(t, c)
		requester := &fakeRequester{}
		controller := NewSubscriptionController(c, requester, shared.NewLogger(io.Discard))

		_, err := c.CreateSubscription(ctx, catalog.SubscriptionCreate{
			User:        user.ID,
			ExternalID:  "fake:artist:1",
			Interval:    time.Hour,
			HasInterval: true,
		})
		if err != nil {
			t.Fatalf("failed to create subscription: %v", err)
		}

		controller.tick(ctx, time.Now())
		if requester.count() != 1 {
			t.Fatalf("expected one request, got %d", requester.count())
		}
		controller.tick(ctx, time.Now().Add(30*time.Minute))
		if requester.count() != 1 {
			t.Errorf("re-submitted before the interval elapsed")
		}
		controller.tick(ctx, time.Now().Add(2*time.Hour))
		if requester.count() != 2 {
			t.Errorf("expected re-submission after the interval, got %d requests", requester.count())
		}
	})

	t.Run("SubmitMarksSubscription", func(t *testing.T) {
		c := newTestCatalog(t)
		user := createTestUser(t, c)
		requester := &fakeRequester{}
		controller := NewSubscriptionController(c, requester, shared.NewLogger(io.Discard))

		_, err := c.CreateSubscription(ctx, catalog.SubscriptionCreate{
			User:       user.ID,
			ExternalID: "fake:album:1",
		})
		if err != nil {
			t.Fatalf("failed to create subscription: %v", err)
		}
		if err := controller.Submit(ctx, user.ID, "fake:album:1"); err != nil {
			t.Fatalf("submit failed: %v", err)
		}

		subscriptions, err := c.ListSubscriptionsByUser(ctx, user.ID)
		if err != nil || len(subscriptions) != 1 {
			t.Fatalf("expected one subscription, got %d (%v)", len(subscriptions), err)
		}
		if subscriptions[0].LastSubmitted.IsZero() {
			t.Error("expected the submission time to be recorded")
		}
	})
}
