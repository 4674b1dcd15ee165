package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	cachex "github.com/tanpawarit/money-tracker/tracker/cache"
	"github.com/tanpawarit/money-tracker/tracker/conversation"
	promptx "github.com/tanpawarit/money-tracker/tracker/prompt"
	statex "github.com/tanpawarit/money-tracker/tracker/state"
	"github.com/tanpawarit/money-tracker/tracker/store/storetest"
)

func newConsoleEngine(t *testing.T) *conversation.Engine {
	t.Helper()

	cached, err := cachex.New(storetest.New(t), cachex.Config{TTL: time.Minute})
	if err != nil {
		t.Fatalf("cache.New() error = %v", err)
	}
	sessions, err := newSessionStore(context.Background(), statex.Config{Backend: statex.BackendMemory, TTL: time.Hour})
	if err != nil {
		t.Fatalf("newSessionStore() error = %v", err)
	}
	engine, err := conversation.New(cached, sessions, promptx.MustLoadPromptSet(), conversation.Config{})
	if err != nil {
		t.Fatalf("conversation.New() error = %v", err)
	}
	return engine
}

func TestConsoleScript(t *testing.T) {
	t.Parallel()

	script := strings.Join([]string{
		"/add_agent",
		"Alice",
		"/add_order",
		"Laptop",
		"1500",
		"#1",
		"yes",
		"create_order;Desk;no price;alice",
		"y",
		"/set_price 2",
		"300",
		"/end 1",
		"/orders",
		"/history",
	}, "\n")

	var out bytes.Buffer
	if err := runConsole(context.Background(), newConsoleEngine(t), strings.NewReader(script), &out, "console"); err != nil {
		t.Fatalf("runConsole() error = %v", err)
	}

	got := out.String()
	for _, want := range []string{
		"Agent #1 Alice added.",
		"Order #1 created: Laptop, 1,500, to Alice.",
		"Order #2 created: Desk, no price, to Alice.",
		"Order #2 now costs 300.",
		"Order #1 paid.",
		"#2 Desk | 300 | Alice",
		"Total: 300",
		"Total: 1,500",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("output missing %q:\n%s", want, got)
		}
	}
}

func TestConsoleReportsErrors(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	script := "/end 42\n/set_price x\nhello\n"
	if err := runConsole(context.Background(), newConsoleEngine(t), strings.NewReader(script), &out, "console"); err != nil {
		t.Fatalf("runConsole() error = %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "error: not found") {
		t.Fatalf("expected not found error:\n%s", got)
	}
	if !strings.Contains(got, "error: invalid input") {
		t.Fatalf("expected invalid input error:\n%s", got)
	}
}

func TestNewSessionStoreRejectsUnknownBackend(t *testing.T) {
	t.Parallel()

	if _, err := newSessionStore(context.Background(), statex.Config{Backend: "etcd"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
