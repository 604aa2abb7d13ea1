package notification_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/frahmantamala/expense-insights/internal"
	notificationDatamodel "github.com/frahmantamala/expense-insights/internal/core/datamodel/notification"
	"github.com/frahmantamala/expense-insights/internal/core/timeframe"
	"github.com/frahmantamala/expense-insights/internal/notification"
	"github.com/frahmantamala/expense-insights/internal/notification/postgres"
	"github.com/frahmantamala/expense-insights/internal/testsupport"
	"github.com/frahmantamala/expense-insights/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

func TestNotification(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Notification Suite")
}

var _ = Describe("Notification Service", func() {
	var (
		db      *gorm.DB
		service *notification.Service
		ctx     context.Context
		now     time.Time
		userID  int64
	)

	BeforeEach(func() {
		var err error
		db, err = testsupport.OpenSQLite()
		Expect(err).NotTo(HaveOccurred())
		u, err := testsupport.CreateUser(db, "ana", false)
		Expect(err).NotTo(HaveOccurred())
		userID = u.ID

		now = time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC)
		service = notification.NewService(postgres.NewNotificationRepository(db), logger.Discard()).
			WithClock(func() time.Time { return now })
		ctx = context.Background()
	})

	AfterEach(func() {
		Expect(testsupport.Close(db)).To(Succeed())
	})

	alert := func() notification.NotifyInput {
		return notification.NotifyInput{
			UserID: userID,
			Title:  "Food Budget Exceeded",
			Body:   "You have spent $520.00 of your $500.00 food budget.",
			Kind:   notification.KindDanger,
		}
	}

	It("stores a notification once per title and day", func() {
		created, err := service.Notify(ctx, alert())
		Expect(err).NotTo(HaveOccurred())
		Expect(created).To(BeTrue())

		now = now.Add(10 * time.Hour)
		created, err = service.Notify(ctx, alert())
		Expect(err).NotTo(HaveOccurred())
		Expect(created).To(BeFalse())

		items, err := service.List(ctx, userID, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(items).To(HaveLen(1))
		Expect(items[0].Kind).To(Equal(notification.KindDanger))
	})

	It("notifies again on the next day", func() {
		_, err := service.Notify(ctx, alert())
		Expect(err).NotTo(HaveOccurred())

		now = now.AddDate(0, 0, 1)
		created, err := service.Notify(ctx, alert())
		Expect(err).NotTo(HaveOccurred())
		Expect(created).To(BeTrue())
	})

	It("creates exactly one row when the same alert fires concurrently", func() {
		var created int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				ok, err := service.Notify(ctx, alert())
				Expect(err).NotTo(HaveOccurred())
				if ok {
					atomic.AddInt32(&created, 1)
				}
			}()
		}
		wg.Wait()

		Expect(atomic.LoadInt32(&created)).To(Equal(int32(1)))
		items, err := service.List(ctx, userID, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(items).To(HaveLen(1))
	})

	It("rejects a duplicate row for the same key and day at the database", func() {
		row := func() *notificationDatamodel.Notification {
			return &notificationDatamodel.Notification{
				UserID: userID, Title: "Rent due", Body: "b", Kind: "info",
				DedupKey: "rent", CreatedDay: timeframe.Day(now), CreatedAt: now,
			}
		}
		Expect(db.Create(row()).Error).To(Succeed())
		Expect(db.Create(row()).Error).To(HaveOccurred())
	})

	Describe("escalation", func() {
		warning := func() notification.NotifyInput {
			return notification.NotifyInput{
				UserID: userID, DedupKey: "budget:food", Title: "Food Budget Warning",
				Body: "You have used $95.00 of your $100.00 Food budget.", Kind: notification.KindWarning,
			}
		}
		danger := func() notification.NotifyInput {
			return notification.NotifyInput{
				UserID: userID, DedupKey: "budget:food", Title: "Food Budget Exceeded",
				Body: "You have spent $105.00 of your $100.00 Food budget.", Kind: notification.KindDanger,
			}
		}

		It("upgrades the day's warning in place", func() {
			created, err := service.Notify(ctx, warning())
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(BeTrue())
			items, err := service.List(ctx, userID, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(service.MarkRead(ctx, internal.Actor{UserID: userID}, items[0].ID)).To(Succeed())

			created, err = service.Notify(ctx, danger())
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(BeTrue())

			items, err = service.List(ctx, userID, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(1))
			Expect(items[0].Title).To(Equal("Food Budget Exceeded"))
			Expect(items[0].Kind).To(Equal(notification.KindDanger))
			Expect(items[0].IsRead).To(BeFalse())
		})

		It("never downgrades an exceeded alert", func() {
			_, err := service.Notify(ctx, danger())
			Expect(err).NotTo(HaveOccurred())
			created, err := service.Notify(ctx, warning())
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(BeFalse())

			items, err := service.List(ctx, userID, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(1))
			Expect(items[0].Kind).To(Equal(notification.KindDanger))
		})
	})

	It("requires a title", func() {
		in := alert()
		in.Title = " "
		_, err := service.Notify(ctx, in)
		Expect(internal.IsType(err, internal.ErrorTypeValidation)).To(BeTrue())
	})

	It("marks notifications read for their owner only", func() {
		_, err := service.Notify(ctx, alert())
		Expect(err).NotTo(HaveOccurred())
		items, err := service.List(ctx, userID, true)
		Expect(err).NotTo(HaveOccurred())
		Expect(items).To(HaveLen(1))

		err = service.MarkRead(ctx, internal.Actor{UserID: userID + 1}, items[0].ID)
		Expect(errors.Is(err, internal.ErrPermissionDenied)).To(BeTrue())

		Expect(service.MarkRead(ctx, internal.Actor{UserID: userID}, items[0].ID)).To(Succeed())
		unread, err := service.List(ctx, userID, true)
		Expect(err).NotTo(HaveOccurred())
		Expect(unread).To(BeEmpty())

		err = service.MarkRead(ctx, internal.Actor{UserID: userID}, 9999)
		Expect(errors.Is(err, internal.ErrNotificationNotFound)).To(BeTrue())
	})
})
