package llm

import (
	"hash/fnv"
	"regexp"
	"strings"
)

type Topic string

const (
	TopicCoffee   Topic = "coffee"
	TopicFood     Topic = "food"
	TopicCredit   Topic = "credit"
	TopicInvest   Topic = "invest"
	TopicBudget   Topic = "budget"
	TopicSave     Topic = "save"
	TopicSpending Topic = "spending"
)

type faqEntry struct {
	pattern *regexp.Regexp
	answers []string
}

var faq = []faqEntry{
	{
		pattern: regexp.MustCompile(`^(?:hi|hello|hey|hiya|howdy|good (?:morning|afternoon|evening))(?: there)?$`),
		answers: []string{
			"Hi! Ask me about your spending, your budget or how to save a little more this month.",
			"Hello! I can total your expenses, compare months and help you stay on budget.",
		},
	},
	{
		pattern: regexp.MustCompile(`^(?:thanks|thank you|thx|cheers|ty)(?: (?:so much|a lot|very much))?$`),
		answers: []string{
			"You're welcome! Happy budgeting.",
			"Anytime. Check back after your next few purchases and we'll see how the month is going.",
		},
	},
	{
		pattern: regexp.MustCompile(`\b(?:help|what can you do|how do you work|what do you do)\b`),
		answers: []string{
			"I can answer questions like \"How much did I spend on food this month?\", list your top expenses, compare categories and months, and point out categories that jumped.",
		},
	},
	{
		pattern: regexp.MustCompile(`\b(?:who|what) are you\b`),
		answers: []string{
			"I'm your expense assistant. I read your ledger and budgets to answer questions about your spending.",
		},
	},
}

type topicEntry struct {
	topic   Topic
	stems   []string
	answers []string
}

// topics are checked in order; the first with a matching stem wins.
var topics = []topicEntry{
	{
		topic: TopicCoffee,
		stems: []string{"coffee", "latte", "espresso", "cappuccino", "starbucks", "cafe"},
		answers: []string{
			"Brewing coffee at home most days and keeping the café for the weekend can save well over $50 a month.",
			"Try a weekly coffee allowance: once it's spent, the rest of the week is home-brewed.",
		},
	},
	{
		topic: TopicFood,
		stems: []string{"food", "grocer", "restaurant", "dining", "meal", "takeout", "lunch", "dinner", "eat"},
		answers: []string{
			"Plan your meals for the week and shop with a list; it's the easiest way to cut grocery bills.",
			"Store brands and buying staples in bulk usually take 10-20% off a grocery run.",
			"Cooking at home two more nights a week adds up fast compared with eating out.",
		},
	},
	{
		topic: TopicCredit,
		stems: []string{"credit", "debt", "loan", "apr", "overdraft"},
		answers: []string{
			"Paying the card balance in full each month avoids interest entirely; if that's not possible, target the highest-rate balance first.",
			"Keeping card spending under about 30% of your limit and paying on time are the two habits that matter most for credit.",
		},
	},
	{
		topic: TopicInvest,
		stems: []string{"invest", "stock", "crypto", "retire", "401k", "portfolio"},
		answers: []string{
			"I can't recommend specific investments, but a steady budget surplus is the first step; talk to a licensed advisor about where to put it.",
			"Before investing, most people build an emergency fund covering a few months of expenses. Your spending history can tell you how big that should be.",
		},
	},
	{
		topic: TopicBudget,
		stems: []string{"budget"},
		answers: []string{
			"Start from last month's actual spending per category, then trim one or two categories by 10% rather than everything at once.",
			"A simple split is 50% needs, 30% wants and 20% savings; compare it with your category breakdown to see where you stand.",
		},
	},
	{
		topic: TopicSave,
		stems: []string{"save", "saving", "savings", "frugal"},
		answers: []string{
			"Move a fixed amount to savings right after payday so what's left is what you spend.",
			"Cancelling one unused subscription is often the quickest saving win; check your recurring expenses.",
		},
	},
	{
		topic: TopicSpending,
		stems: []string{"spend", "spent", "expense", "purchase"},
		answers: []string{
			"Your biggest categories usually hold the biggest opportunities; ask me to compare your spending by category.",
			"Looking at month over month changes is a good way to catch spending creep early.",
		},
	},
}

var moneyStems = []string{"money", "cost", "price", "pay", "bill", "afford", "cash", "dollar", "expensive", "cheap"}

var cannedAnswers = []string{
	"Tracking every expense for a month is the best way to find out where your money goes.",
	"Small recurring costs are easy to miss; review your last month's expenses for anything you no longer use.",
	"Setting a cap for each budget category makes it easy to see when you're drifting.",
}

const neutralAnswer = "I can't reach the assistant right now. Please try again in a little while, or ask me something like \"How much did I spend this month?\"."

var defaultSuggestions = []string{
	"How much did I spend this month?",
	"Show my top 5 expenses last month",
	"Which category exploded this month?",
}

var topicSuggestions = map[Topic][]string{
	TopicCoffee:   {"How much did I spend on coffee this month?", "How much did I spend on coffee last month?"},
	TopicFood:     {"How much did I spend on groceries this month?", "How much did I spend on dining last month?"},
	TopicBudget:   {"Compare my spending by category", "Compare monthly spending"},
	TopicSpending: {"Compare my spending by category", "Which category exploded this month?"},
}

// TopicAnswers lists the canned answers for a topic.
func TopicAnswers(t Topic) []string {
	for _, e := range topics {
		if e.topic == t {
			return append([]string(nil), e.answers...)
		}
	}
	return nil
}

// ClassifyTopic reports the first topic whose stem starts a word in the message.
func ClassifyTopic(message string) (Topic, bool) {
	words := strings.Fields(normaliseMessage(message))
	for _, e := range topics {
		if hasStem(words, e.stems) {
			return e.topic, true
		}
	}
	return "", false
}

type fallbackReply struct {
	text        string
	suggestions []string
	source      string
}

// fallback answers without the upstream. The choice within a set depends only on the message.
func fallback(message string) fallbackReply {
	text := normaliseMessage(message)
	for _, e := range faq {
		if e.pattern.MatchString(text) {
			return fallbackReply{text: pick(e.answers, text), suggestions: defaultSuggestions, source: "faq"}
		}
	}

	words := strings.Fields(text)
	for _, e := range topics {
		if hasStem(words, e.stems) {
			suggestions, ok := topicSuggestions[e.topic]
			if !ok {
				suggestions = defaultSuggestions
			}
			return fallbackReply{text: pick(e.answers, text), suggestions: suggestions, source: "topic:" + string(e.topic)}
		}
	}

	if hasStem(words, moneyStems) || strings.Contains(message, "$") {
		return fallbackReply{text: pick(cannedAnswers, text), suggestions: defaultSuggestions, source: "canned"}
	}
	return fallbackReply{text: neutralAnswer, suggestions: defaultSuggestions, source: "neutral"}
}

var nonWord = regexp.MustCompile(`[^a-z0-9' ]+`)

func normaliseMessage(s string) string {
	s = nonWord.ReplaceAllString(strings.ToLower(s), " ")
	return strings.Join(strings.Fields(s), " ")
}

func hasStem(words, stems []string) bool {
	for _, w := range words {
		for _, s := range stems {
			if strings.HasPrefix(w, s) {
				return true
			}
		}
	}
	return false
}

func pick(options []string, key string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return options[h.Sum32()%uint32(len(options))]
}
