package user_test

import (
	"context"
	"testing"

	"github.com/frahmantamala/expense-insights/internal"
	"github.com/frahmantamala/expense-insights/internal/testsupport"
	"github.com/frahmantamala/expense-insights/internal/user"
	"github.com/frahmantamala/expense-insights/internal/user/postgres"
	"github.com/frahmantamala/expense-insights/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func TestUser(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "User Suite")
}

var _ = Describe("User Service", func() {
	var (
		db      *gorm.DB
		service *user.Service
		ctx     context.Context
	)

	BeforeEach(func() {
		var err error
		db, err = testsupport.OpenSQLite()
		Expect(err).NotTo(HaveOccurred())
		service = user.NewService(postgres.NewUserRepository(db), bcrypt.MinCost, logger.Discard())
		ctx = context.Background()
	})

	AfterEach(func() {
		Expect(testsupport.Close(db)).To(Succeed())
	})

	Describe("Register", func() {
		It("creates an active user with alerts enabled", func() {
			u, err := service.Register(ctx, user.RegisterDTO{Username: "ana", Email: "Ana@Example.com", Password: "secret-pass"})
			Expect(err).NotTo(HaveOccurred())
			Expect(u.ID).To(BeNumerically(">", 0))
			Expect(u.Email).To(Equal("ana@example.com"))
			Expect(u.IsActive).To(BeTrue())
			Expect(u.WantsBudgetAlerts()).To(BeTrue())
		})

		It("rejects a duplicate username with a conflict", func() {
			_, err := service.Register(ctx, user.RegisterDTO{Username: "ana", Email: "ana@example.com", Password: "secret-pass"})
			Expect(err).NotTo(HaveOccurred())

			_, err = service.Register(ctx, user.RegisterDTO{Username: "ana", Email: "other@example.com", Password: "secret-pass"})
			Expect(internal.IsType(err, internal.ErrorTypeConflict)).To(BeTrue())
		})

		It("validates input", func() {
			_, err := service.Register(ctx, user.RegisterDTO{Username: "", Email: "nope", Password: "short"})
			Expect(internal.IsType(err, internal.ErrorTypeValidation)).To(BeTrue())
		})
	})

	Describe("Authenticate", func() {
		BeforeEach(func() {
			_, err := service.Register(ctx, user.RegisterDTO{Username: "ana", Email: "ana@example.com", Password: "secret-pass"})
			Expect(err).NotTo(HaveOccurred())
		})

		It("accepts username or email", func() {
			u, err := service.Authenticate(ctx, "ana", "secret-pass")
			Expect(err).NotTo(HaveOccurred())
			Expect(u.LastLogin).NotTo(BeNil())

			_, err = service.Authenticate(ctx, "ana@example.com", "secret-pass")
			Expect(err).NotTo(HaveOccurred())
		})

		It("rejects a wrong password", func() {
			_, err := service.Authenticate(ctx, "ana", "wrong-pass")
			Expect(err).To(MatchError(internal.ErrInvalidCredentials))
		})

		It("refuses suspended accounts", func() {
			Expect(db.Exec("UPDATE users SET is_suspended = ? WHERE username = ?", true, "ana").Error).To(Succeed())
			_, err := service.Authenticate(ctx, "ana", "secret-pass")
			Expect(err).To(MatchError(internal.ErrUserInactive))
		})
	})

	Describe("UpdatePreferences", func() {
		It("only lets the owner or an admin change preferences", func() {
			u, err := service.Register(ctx, user.RegisterDTO{Username: "ana", Email: "ana@example.com", Password: "secret-pass"})
			Expect(err).NotTo(HaveOccurred())
			off := false

			_, err = service.UpdatePreferences(ctx, internal.Actor{UserID: u.ID + 1}, u.ID, user.PreferencesDTO{AlertsEnabled: &off})
			Expect(err).To(MatchError(internal.ErrPermissionDenied))

			updated, err := service.UpdatePreferences(ctx, internal.Actor{UserID: 99, IsAdmin: true}, u.ID, user.PreferencesDTO{AlertsEnabled: &off})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.WantsBudgetAlerts()).To(BeFalse())
		})
	})
})
