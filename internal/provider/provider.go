// Package provider sends the project context plus a question to an LLM
// backend. Backends are selected by name from a fixed registry.
package provider

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Role of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    Role
	Content string
}

// Config carries per-call settings. Empty fields fall back to the
// backend's defaults and environment.
type Config struct {
	Model     string
	MaxTokens int
	APIKey    string
	BaseURL   string
}

// Provider is an LLM backend.
type Provider interface {
	Name() string
	Send(ctx context.Context, msgs []Message, cfg Config) (string, error)
}

var registry = map[string]Provider{
	"anthropic": Anthropic{},
	"openai":    OpenAI{},
}

// Get returns the provider registered under name.
func Get(name string) (Provider, error) {
	p, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return p, nil
}

// Names lists registered providers in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

const askPreamble = `You are assisting on a software project that keeps its memory in SpecLock.
The context pack below lists the project goal, non-negotiable locks, decisions and recent changes.
Never suggest anything that violates a lock. If the question conflicts with a lock, say so first.

`

// ContextMessages builds the conversation for `speclock ask`: the context
// document as system prompt and the question as the user turn.
func ContextMessages(contextDoc, question string) []Message {
	return []Message{
		{Role: RoleSystem, Content: askPreamble + contextDoc},
		{Role: RoleUser, Content: question},
	}
}

// splitSystem joins all system messages into one prompt and returns the
// remaining turns in order.
func splitSystem(msgs []Message) (string, []Message) {
	var system []string
	rest := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(system, "\n\n"), rest
}
