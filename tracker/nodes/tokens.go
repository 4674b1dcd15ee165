package conversationnode

import (
	"strconv"
	"strings"
)

// Tokens are the reserved words recognised in text input. Matching ignores
// case and surrounding space.
type Tokens struct {
	NoPrice []string
	Cancel  []string
	Confirm []string
}

func NewTokens(noPrice, cancel, confirm []string) Tokens {
	return Tokens{
		NoPrice: normalize(noPrice),
		Cancel:  normalize(cancel),
		Confirm: normalize(confirm),
	}
}

func DefaultTokens() Tokens {
	return NewTokens(
		[]string{"no price", "-"},
		[]string{"back", "cancel"},
		[]string{"yes", "y", "confirm"},
	)
}

func (t Tokens) IsNoPrice(text string) bool {
	return matches(t.NoPrice, text)
}

func (t Tokens) IsCancel(text string) bool {
	return matches(t.Cancel, text)
}

func (t Tokens) IsConfirm(text string) bool {
	return matches(t.Confirm, text)
}

func normalize(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

func matches(words []string, text string) bool {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return false
	}
	for _, w := range words {
		if w == text {
			return true
		}
	}
	return false
}

func first(words []string) string {
	if len(words) == 0 {
		return ""
	}
	return words[0]
}

// parsePrice accepts a non-negative integer made of ASCII digits only, or a
// no-price token which yields nil.
func parsePrice(text string, tokens Tokens) (*int64, bool) {
	if tokens.IsNoPrice(text) {
		return nil, true
	}
	v, ok := parseDigits(text)
	if !ok {
		return nil, false
	}
	return &v, true
}

func parseDigits(text string) (int64, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, false
	}
	for _, r := range text {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
