package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/frahmantamala/expense-insights/internal"
	"github.com/frahmantamala/expense-insights/internal/core/events"
	"github.com/frahmantamala/expense-insights/internal/core/timeframe"
	"github.com/frahmantamala/expense-insights/internal/expense"
	"github.com/frahmantamala/expense-insights/internal/llm"
	"github.com/frahmantamala/expense-insights/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

func TestLLM(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "LLM Suite")
}

type fakeCompleter struct {
	mu       sync.Mutex
	reply    string
	err      error
	block    bool
	messages []llm.Message
}

func (f *fakeCompleter) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	f.mu.Lock()
	f.messages = messages
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.reply, f.err
}

type fakeTranscriber struct {
	text    string
	err     error
	path    string
	content string
}

func (f *fakeTranscriber) Transcribe(_ context.Context, path string) (string, error) {
	f.path = path
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	f.content = string(b)
	return f.text, f.err
}

type fakeSpending struct {
	calls      int
	total      expense.Total
	categories []expense.CategoryTotal
	period     *timeframe.Period
}

func (f *fakeSpending) AggregateTotal(_ context.Context, _ expense.Scope, p *timeframe.Period) (expense.Total, error) {
	f.calls++
	f.period = p
	return f.total, nil
}

func (f *fakeSpending) AggregateByCategory(_ context.Context, _ expense.Scope, _ *timeframe.Period) ([]expense.CategoryTotal, error) {
	return f.categories, nil
}

func amount(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var now = time.Date(2025, 3, 20, 9, 0, 0, 0, time.UTC)

func newSpending() *fakeSpending {
	return &fakeSpending{
		total: expense.Total{Total: amount("1450.00"), Count: 9},
		categories: []expense.CategoryTotal{
			{Category: "Rent", Total: amount("900.00"), Count: 1},
			{Category: "Food", Total: amount("300.00"), Count: 5},
			{Category: "Transport", Total: amount("150.00"), Count: 2},
			{Category: "Coffee", Total: amount("100.00"), Count: 1},
		},
	}
}

var _ = Describe("Fallback", func() {
	var service *llm.Service

	BeforeEach(func() {
		client := llm.NewOpenAIClient(llm.ClientOptions{})
		service = llm.NewService(client, client, nil, llm.Options{}, logger.Discard())
	})

	It("answers grocery saving questions from the food set without credentials", func() {
		resp := service.Chat(context.Background(), 1, llm.ChatRequest{
			Message:    "How do I save money on groceries?",
			HumorLevel: "medium",
		})
		Expect(resp.Success).To(BeTrue())
		Expect(resp.Fallback).To(BeTrue())
		Expect(resp.Response).To(BeElementOf(llm.TopicAnswers(llm.TopicFood)))
		Expect(resp.Suggestions).NotTo(BeEmpty())

		again := service.Chat(context.Background(), 1, llm.ChatRequest{Message: "How do I save money on groceries?"})
		Expect(again.Response).To(Equal(resp.Response))
	})

	It("greets without touching the topic set", func() {
		resp := service.Chat(context.Background(), 1, llm.ChatRequest{Message: "Hello!"})
		Expect(resp.Fallback).To(BeTrue())
		Expect(resp.Response).To(Or(HavePrefix("Hi!"), HavePrefix("Hello!")))
	})

	It("uses the neutral reply for unrelated questions", func() {
		resp := service.Chat(context.Background(), 1, llm.ChatRequest{Message: "what is the weather like"})
		Expect(resp.Response).To(ContainSubstring("try again"))
	})

	It("uses the general canned set for money questions without a topic", func() {
		resp := service.Chat(context.Background(), 1, llm.ChatRequest{Message: "can I afford a new phone"})
		Expect(resp.Fallback).To(BeTrue())
		Expect(resp.Response).NotTo(ContainSubstring("try again"))
	})

	DescribeTable("classifies topics in priority order",
		func(message string, want llm.Topic) {
			topic, ok := llm.ClassifyTopic(message)
			Expect(ok).To(BeTrue())
			Expect(topic).To(Equal(want))
		},
		Entry("coffee before food", "coffee with lunch every day", llm.TopicCoffee),
		Entry("food before save", "save on groceries", llm.TopicFood),
		Entry("credit", "my credit card debt", llm.TopicCredit),
		Entry("invest", "should I be investing", llm.TopicInvest),
		Entry("budget", "help me make a budget", llm.TopicBudget),
		Entry("save", "tips for saving", llm.TopicSave),
		Entry("spending", "I am spending too much", llm.TopicSpending),
	)
})

var _ = Describe("Chat", func() {
	var (
		completer *fakeCompleter
		spending  *fakeSpending
		service   *llm.Service
	)

	BeforeEach(func() {
		completer = &fakeCompleter{reply: "  Trim dining out a little.  "}
		spending = newSpending()
		snapshots := llm.NewSnapshotBuilder(spending, 10, time.Minute, logger.Discard()).WithClock(func() time.Time { return now })
		service = llm.NewService(completer, nil, snapshots, llm.Options{Timeout: 50 * time.Millisecond}, logger.Discard())
	})

	It("sends the humor prefix and snapshot in the system prompt", func() {
		resp := service.Chat(context.Background(), 7, llm.ChatRequest{Message: "Any advice?", HumorLevel: "HIGH"})
		Expect(resp.Fallback).To(BeFalse())
		Expect(resp.Response).To(Equal("Trim dining out a little."))

		Expect(completer.messages).To(HaveLen(2))
		system := completer.messages[0]
		Expect(system.Role).To(Equal(llm.RoleSystem))
		Expect(system.Content).To(HavePrefix("You are a playful"))
		Expect(system.Content).To(ContainSubstring("Do not recommend specific investments"))
		Expect(system.Content).To(ContainSubstring("Total: $1,450.00 across 9 expenses"))
		Expect(completer.messages[1].Content).To(Equal("Any advice?"))
	})

	It("falls back on upstream errors and empty replies", func() {
		completer.err = errors.New("502 bad gateway")
		Expect(service.Chat(context.Background(), 7, llm.ChatRequest{Message: "budget tips"}).Fallback).To(BeTrue())

		completer.err = nil
		completer.reply = "   "
		Expect(service.Chat(context.Background(), 7, llm.ChatRequest{Message: "budget tips"}).Fallback).To(BeTrue())
	})

	It("falls back when the upstream times out", func() {
		completer.block = true
		resp := service.Chat(context.Background(), 7, llm.ChatRequest{Message: "budget tips"})
		Expect(resp.Fallback).To(BeTrue())
		Expect(resp.Response).To(BeElementOf(llm.TopicAnswers(llm.TopicBudget)))
	})

	It("falls back when the caller cancels", func() {
		completer.block = true
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		Expect(service.Chat(ctx, 7, llm.ChatRequest{Message: "coffee"}).Fallback).To(BeTrue())
	})
})

var _ = Describe("SnapshotBuilder", func() {
	var (
		spending *fakeSpending
		builder  *llm.SnapshotBuilder
	)

	BeforeEach(func() {
		spending = newSpending()
		builder = llm.NewSnapshotBuilder(spending, 10, time.Minute, logger.Discard()).WithClock(func() time.Time { return now })
	})

	It("covers the last thirty days and keeps the top three categories", func() {
		snap, err := builder.Build(context.Background(), 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(spending.period.Start).To(Equal(time.Date(2025, 2, 19, 0, 0, 0, 0, time.UTC)))
		Expect(spending.period.End).To(Equal(time.Date(2025, 3, 21, 0, 0, 0, 0, time.UTC)))
		Expect(snap.Top).To(HaveLen(3))
		Expect(snap.Render()).To(ContainSubstring("Top categories: Rent ($900.00), Food ($300.00), Transport ($150.00)"))
	})

	It("renders an empty month plainly", func() {
		spending.total = expense.Total{Total: decimal.Zero}
		spending.categories = nil
		snap, err := builder.Build(context.Background(), 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(snap.Render()).To(HaveSuffix("- No expenses recorded."))
	})

	It("caches per user until a ledger event arrives", func() {
		bus := events.NewEventBus(logger.Discard())
		builder.Subscribe(bus)

		_, err := builder.Build(context.Background(), 1)
		Expect(err).NotTo(HaveOccurred())
		_, err = builder.Build(context.Background(), 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(spending.calls).To(Equal(1))

		Expect(bus.PublishSync(context.Background(), events.NewExpenseCreatedEvent(5, 1, "Food", now))).To(Succeed())
		_, err = builder.Build(context.Background(), 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(spending.calls).To(Equal(2))
	})

	It("drops the snapshot when an import batch is deleted", func() {
		bus := events.NewEventBus(logger.Discard())
		builder.Subscribe(bus)

		_, err := builder.Build(context.Background(), 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(bus.PublishSync(context.Background(), events.NewImportDeletedEvent(3, 2, 4))).To(Succeed())
		_, err = builder.Build(context.Background(), 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(spending.calls).To(Equal(1))

		Expect(bus.PublishSync(context.Background(), events.NewImportDeletedEvent(3, 1, 4))).To(Succeed())
		_, err = builder.Build(context.Background(), 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(spending.calls).To(Equal(2))
	})
})

var _ = Describe("Transcribe", func() {
	var (
		dir         string
		transcriber *fakeTranscriber
		service     *llm.Service
	)

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "voice-test-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(os.RemoveAll, dir)
		transcriber = &fakeTranscriber{text: " how much did I spend this month "}
		service = llm.NewService(nil, transcriber, nil, llm.Options{TempDir: dir}, logger.Discard())
	})

	It("spools the audio to a temp file and removes it afterwards", func() {
		text, err := service.Transcribe(context.Background(), strings.NewReader("RIFFdata"), "memo.WAV")
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(Equal("how much did I spend this month"))
		Expect(transcriber.content).To(Equal("RIFFdata"))
		Expect(transcriber.path).To(HaveSuffix(".wav"))

		entries, err := os.ReadDir(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(BeEmpty())
	})

	It("reports upstream failures as transcription failures", func() {
		transcriber.err = errors.New("boom")
		_, err := service.Transcribe(context.Background(), strings.NewReader("x"), "memo.webm")
		Expect(errors.Is(err, internal.ErrTranscriptionFailed)).To(BeTrue())

		entries, _ := os.ReadDir(dir)
		Expect(entries).To(BeEmpty())
	})

	It("fails without a transcriber", func() {
		service = llm.NewService(nil, nil, nil, llm.Options{}, logger.Discard())
		_, err := service.Transcribe(context.Background(), strings.NewReader("x"), "memo.webm")
		Expect(errors.Is(err, internal.ErrTranscriptionFailed)).To(BeTrue())
	})
})

var _ = Describe("OpenAIClient", func() {
	var (
		server *httptest.Server
		client *llm.OpenAIClient
		status int
		seen   map[string]interface{}
		auth   string
	)

	BeforeEach(func() {
		status = http.StatusOK
		seen = nil
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth = r.Header.Get("Authorization")
			w.Header().Set("Content-Type", "application/json")
			switch r.URL.Path {
			case "/v1/chat/completions":
				body, _ := io.ReadAll(r.Body)
				_ = json.Unmarshal(body, &seen)
				if status != http.StatusOK {
					w.WriteHeader(status)
					_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
					return
				}
				_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":" Spend less on coffee. "},"finish_reason":"stop"}]}`))
			case "/v1/audio/transcriptions":
				_, _ = w.Write([]byte(`{"text":"top expenses last month"}`))
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		}))
		DeferCleanup(server.Close)
		client = llm.NewOpenAIClient(llm.ClientOptions{
			APIKey:             "test-key",
			BaseURL:            server.URL + "/v1/",
			Model:              "test-model",
			TranscriptionModel: "whisper-1",
			MaxTokens:          64,
		})
	})

	It("returns the first choice", func() {
		reply, err := client.Complete(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}})
		Expect(err).NotTo(HaveOccurred())
		Expect(reply).To(Equal("Spend less on coffee."))
		Expect(seen).To(HaveKeyWithValue("model", "test-model"))
		Expect(auth).To(Equal("Bearer test-key"))
	})

	It("surfaces non-success responses as errors", func() {
		status = http.StatusServiceUnavailable
		_, err := client.Complete(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}})
		Expect(err).To(HaveOccurred())
	})

	It("uploads audio files for transcription", func() {
		f, err := os.CreateTemp("", "audio-*.webm")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(os.Remove, f.Name())
		_, _ = f.WriteString("audio")
		Expect(f.Close()).To(Succeed())

		text, err := client.Transcribe(context.Background(), f.Name())
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(Equal("top expenses last month"))
	})

	It("refuses to call out without a key", func() {
		_, err := llm.NewOpenAIClient(llm.ClientOptions{}).Complete(context.Background(), nil)
		Expect(err).To(MatchError(llm.ErrMissingCredentials))
	})
})
