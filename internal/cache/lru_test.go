package cache_test

import (
	"testing"
	"time"

	"github.com/frahmantamala/expense-insights/internal/cache"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestCache(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Cache Suite")
}

var _ = Describe("LRU", func() {
	var (
		now time.Time
		c   *cache.LRU[int64, string]
	)

	BeforeEach(func() {
		now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		c = cache.NewLRU[int64, string](2, time.Minute).WithClock(func() time.Time { return now })
	})

	It("evicts the least recently used entry", func() {
		c.Set(1, "a")
		c.Set(2, "b")
		_, _ = c.Get(1)
		c.Set(3, "c")

		_, ok := c.Get(2)
		Expect(ok).To(BeFalse())
		v, ok := c.Get(1)
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal("a"))
		Expect(c.Len()).To(Equal(2))
	})

	It("expires entries after the ttl", func() {
		c.Set(1, "a")
		now = now.Add(time.Minute)
		_, ok := c.Get(1)
		Expect(ok).To(BeFalse())
		Expect(c.Len()).To(BeZero())
	})

	It("overwrites and deletes keys", func() {
		c.Set(1, "a")
		c.Set(1, "b")
		v, _ := c.Get(1)
		Expect(v).To(Equal("b"))

		c.Delete(1)
		_, ok := c.Get(1)
		Expect(ok).To(BeFalse())
	})

	It("cleans expired entries in bulk", func() {
		c.Set(1, "a")
		now = now.Add(30 * time.Second)
		c.Set(2, "b")
		now = now.Add(45 * time.Second)
		Expect(c.CleanExpired()).To(Equal(1))
		Expect(c.Len()).To(Equal(1))
	})
})
