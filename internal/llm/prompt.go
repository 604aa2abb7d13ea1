package llm

import (
	"fmt"
	"strings"
)

type HumorLevel string

const (
	HumorLow    HumorLevel = "low"
	HumorMedium HumorLevel = "medium"
	HumorHigh   HumorLevel = "high"
)

// ParseHumorLevel accepts the three levels case-insensitively; anything else yields def.
func ParseHumorLevel(s string, def HumorLevel) HumorLevel {
	switch h := HumorLevel(strings.ToLower(strings.TrimSpace(s))); h {
	case HumorLow, HumorMedium, HumorHigh:
		return h
	}
	return def
}

var humorPrefixes = map[HumorLevel]string{
	HumorLow:    "You are a precise personal finance assistant. Keep a neutral, strictly informational tone.",
	HumorMedium: "You are a friendly personal finance assistant. A light touch of humor is welcome when it keeps things clear.",
	HumorHigh:   "You are a playful personal finance sidekick. Be witty and upbeat, but never at the expense of accuracy.",
}

const instructions = `Guidelines:
- Answer in at most four short sentences or a brief list.
- Focus on budgeting, expenses and everyday saving habits.
- Do not recommend specific investments, securities or financial products.
- Use the spending summary below when it is relevant; never invent numbers that are not in it.
- If the question is not about personal finance, steer back to the user's spending.`

// SystemPrompt composes the humor prefix, the fixed guidelines and the user's snapshot.
func SystemPrompt(level HumorLevel, snapshot string) string {
	prefix, ok := humorPrefixes[level]
	if !ok {
		prefix = humorPrefixes[HumorMedium]
	}
	if snapshot == "" {
		return fmt.Sprintf("%s\n\n%s", prefix, instructions)
	}
	return fmt.Sprintf("%s\n\n%s\n\n%s", prefix, instructions, snapshot)
}
