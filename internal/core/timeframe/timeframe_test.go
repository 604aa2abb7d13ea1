package timeframe_test

import (
	"testing"
	"time"

	"github.com/frahmantamala/expense-insights/internal/core/timeframe"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestTimeframe(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Timeframe Suite")
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var _ = Describe("Timeframe", func() {
	Describe("Current", func() {
		It("starts weeks on Monday", func() {
			// 2025-03-13 is a Thursday
			p := timeframe.Current(timeframe.Week, date(2025, 3, 13))
			Expect(p.Start).To(Equal(date(2025, 3, 10)))
			Expect(p.End).To(Equal(date(2025, 3, 17)))
		})

		It("treats Sunday as the last day of the week", func() {
			p := timeframe.Current(timeframe.Week, date(2025, 3, 16))
			Expect(p.Start).To(Equal(date(2025, 3, 10)))
		})

		It("aligns months and years to the calendar", func() {
			m := timeframe.Current(timeframe.Month, date(2025, 2, 20))
			Expect(m.Start).To(Equal(date(2025, 2, 1)))
			Expect(m.End).To(Equal(date(2025, 3, 1)))

			y := timeframe.Current(timeframe.Year, date(2025, 7, 4))
			Expect(y.Start).To(Equal(date(2025, 1, 1)))
			Expect(y.End).To(Equal(date(2026, 1, 1)))
		})
	})

	Describe("Previous", func() {
		It("rolls January back to December of the prior year", func() {
			p := timeframe.Previous(timeframe.Month, date(2025, 1, 1))
			Expect(p.Start).To(Equal(date(2024, 12, 1)))
			Expect(p.End).To(Equal(date(2025, 1, 1)))
		})

		It("abuts the current period", func() {
			for _, kind := range []timeframe.Kind{timeframe.Week, timeframe.Month, timeframe.Year} {
				ref := date(2025, 3, 13)
				Expect(timeframe.Previous(kind, ref).End).To(Equal(timeframe.Current(kind, ref).Start))
			}
		})
	})

	Describe("ParseRelative", func() {
		It("resolves last month and the month before it", func() {
			rel, err := timeframe.ParseRelative("last month")
			Expect(err).NotTo(HaveOccurred())

			cur, prev := rel.Resolve(date(2025, 3, 15))
			Expect(cur.Start).To(Equal(date(2025, 2, 1)))
			Expect(prev.Start).To(Equal(date(2025, 1, 1)))
			Expect(prev.End).To(Equal(cur.Start))
		})

		It("rejects unknown phrases", func() {
			_, err := timeframe.ParseRelative("next fortnight")
			Expect(err).To(HaveOccurred())
		})
	})

	It("moves months across year boundaries", func() {
		y, m := timeframe.AddMonths(2024, time.November, 3)
		Expect(y).To(Equal(2025))
		Expect(m).To(Equal(time.February))
	})

	It("contains days inside a half-open period", func() {
		p := timeframe.MonthOf(2025, time.March)
		Expect(p.Contains(date(2025, 3, 31))).To(BeTrue())
		Expect(p.Contains(date(2025, 4, 1))).To(BeFalse())
		Expect(p.Label()).To(Equal("March 2025"))
	})
})
