package events_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/frahmantamala/expense-insights/internal/core/events"
	"github.com/frahmantamala/expense-insights/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestEvents(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Events Suite")
}

var _ = Describe("EventBus", func() {
	var bus *events.EventBus

	BeforeEach(func() {
		bus = events.NewEventBus(logger.Discard())
	})

	It("runs every sync handler even when one fails", func() {
		var calls int32
		bus.Subscribe(events.EventTypeExpenseCreated, func(ctx context.Context, e events.Event) error {
			atomic.AddInt32(&calls, 1)
			return errors.New("boom")
		})
		bus.Subscribe(events.EventTypeExpenseCreated, func(ctx context.Context, e events.Event) error {
			atomic.AddInt32(&calls, 1)
			return nil
		})

		err := bus.PublishSync(context.Background(), events.NewExpenseCreatedEvent(1, 2, "Food", time.Now()))
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("boom"))
		Expect(atomic.LoadInt32(&calls)).To(Equal(int32(2)))
	})

	It("delivers async events after the publisher's context is cancelled", func() {
		done := make(chan int64, 1)
		bus.Subscribe(events.EventTypeImportCompleted, func(ctx context.Context, e events.Event) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			done <- e.AffectedUser()
			return nil
		})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		Expect(bus.Publish(ctx, events.NewImportCompletedEvent(9, 42, 3))).To(Succeed())
		Eventually(done).Should(Receive(Equal(int64(42))))
	})

	It("exposes the affected user through the embedded base", func() {
		e := events.NewExpenseUpdatedEvent(3, 8, "Rent", time.Now())
		Expect(e.AffectedUser()).To(Equal(int64(8)))
		Expect(e.UserID).To(Equal(int64(8)))
		Expect(e.EventType()).To(Equal(events.EventTypeExpenseUpdated))
		Expect(e.EventID()).NotTo(BeEmpty())
	})

	It("ignores events without handlers", func() {
		Expect(bus.PublishSync(context.Background(), events.NewExpenseDeletedEvent(1, 1))).To(Succeed())
	})
})
