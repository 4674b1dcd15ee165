package prompt

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"path"
	"strings"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

var ErrPromptMissing = errors.New("required prompt is missing")

//go:embed template/*.txt
var templateFS embed.FS

// Key names one embedded template; it is the file name without extension.
type Key string

const (
	OrderName   Key = "order_name"
	OrderPrice  Key = "order_price"
	OrderAgent  Key = "order_agent"
	OrderVerify Key = "order_verify"
	AgentName   Key = "agent_name"
	SetPrice    Key = "set_price"
	FindOrder   Key = "find_order"

	OrderCreated Key = "order_created"
	AgentCreated Key = "agent_created"
	PriceSet     Key = "price_set"
	OrderFound   Key = "order_found"

	Cancelled     Key = "cancelled"
	Declined      Key = "declined"
	NoAgents      Key = "no_agents"
	AgentMissing  Key = "agent_missing"
	OrderMissing  Key = "order_missing"
	AlreadyPriced Key = "already_priced"
	StoreFailure  Key = "store_failure"

	InvalidName     Key = "invalid_name"
	InvalidPrice    Key = "invalid_price"
	InvalidUID      Key = "invalid_uid"
	InvalidShortcut Key = "invalid_shortcut"
	UnknownAgent    Key = "unknown_agent"
)

// Vars fills the {placeholders} of a template.
type Vars map[string]any

// PromptSet holds loaded prompt content.
type PromptSet struct {
	templates map[Key]string
}

// LoadPromptSet reads every embedded template with surrounding space trimmed.
func LoadPromptSet() (PromptSet, error) {
	entries, err := templateFS.ReadDir("template")
	if err != nil {
		return PromptSet{}, fmt.Errorf("read prompt templates: %w", err)
	}
	set := PromptSet{templates: make(map[Key]string, len(entries))}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		raw, err := templateFS.ReadFile(path.Join("template", entry.Name()))
		if err != nil {
			return PromptSet{}, fmt.Errorf("read prompt %s: %w", entry.Name(), err)
		}
		key := Key(strings.TrimSuffix(entry.Name(), path.Ext(entry.Name())))
		set.templates[key] = strings.TrimSpace(string(raw))
	}
	return set, nil
}

func MustLoadPromptSet() PromptSet {
	set, err := LoadPromptSet()
	if err != nil {
		panic(err)
	}
	return set
}

// Render formats the template behind key. Templates use single-brace
// placeholders, e.g. {name}.
func (s PromptSet) Render(ctx context.Context, key Key, vars Vars) (string, error) {
	raw, ok := s.templates[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrPromptMissing, key)
	}
	if !strings.Contains(raw, "{") {
		return raw, nil
	}

	tmpl := einoprompt.FromMessages(schema.FString, schema.SystemMessage(raw))
	msgs, err := tmpl.Format(ctx, map[string]any(vars))
	if err != nil {
		return "", fmt.Errorf("render prompt %s: %w", key, err)
	}
	if len(msgs) == 0 {
		return "", fmt.Errorf("render prompt %s: no output", key)
	}
	return msgs[0].Content, nil
}
