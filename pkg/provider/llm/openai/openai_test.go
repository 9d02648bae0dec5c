package openai

import (
	"testing"

	"github.com/MrWong99/sceneforge/pkg/provider/llm"
)

func TestNew_Validation(t *testing.T) {
	t.Parallel()
	if _, err := New("", "gpt-4o"); err == nil {
		t.Error("expected error for empty api key")
	}
	if _, err := New("sk-test", ""); err == nil {
		t.Error("expected error for empty model")
	}
	p, err := New("sk-test", "gpt-4o-mini", WithBaseURL("http://localhost:8080/v1"), WithTimeout(0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := p.Capabilities().MaxOutputTokens; got != 16_384 {
		t.Errorf("gpt-4o-mini max output = %d", got)
	}
}

func TestConvertMessage(t *testing.T) {
	t.Parallel()

	sys, err := convertMessage(llm.Message{Role: llm.RoleSystem, Content: "You are Bob."})
	if err != nil || sys.OfSystem == nil {
		t.Errorf("system: %v, OfSystem=%v", err, sys.OfSystem)
	}
	usr, err := convertMessage(llm.Message{Role: llm.RoleUser, Content: "Beat 3."})
	if err != nil || usr.OfUser == nil {
		t.Errorf("user: %v, OfUser=%v", err, usr.OfUser)
	}
	asst, err := convertMessage(llm.Message{Role: llm.RoleAssistant, Content: "[SILENT]", Name: "bob"})
	if err != nil || asst.OfAssistant == nil {
		t.Fatalf("assistant: %v", err)
	}
	if !asst.OfAssistant.Name.Valid() || asst.OfAssistant.Name.Value != "bob" {
		t.Errorf("assistant name not preserved")
	}
	if _, err := convertMessage(llm.Message{Role: "tool", Content: "x"}); err == nil {
		t.Error("expected error for unsupported role")
	}
}

func TestBuildParams(t *testing.T) {
	t.Parallel()

	p := &Provider{model: "gpt-4o"}
	params, err := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "You are Alice.",
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: "Beat 0."}},
		Temperature:  0.9,
		MaxTokens:    300,
	})
	if err != nil {
		t.Fatalf("buildParams: %v", err)
	}
	if len(params.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(params.Messages))
	}
	if params.Messages[0].OfSystem == nil {
		t.Error("first message should be the system prompt")
	}
	if params.Temperature.Value != 0.9 {
		t.Errorf("temperature = %v", params.Temperature.Value)
	}
	if params.MaxCompletionTokens.Value != 300 {
		t.Errorf("max completion tokens = %v", params.MaxCompletionTokens.Value)
	}
}

func TestBuildParams_UnknownRole(t *testing.T) {
	t.Parallel()
	p := &Provider{model: "gpt-4o"}
	if _, err := p.buildParams(llm.CompletionRequest{Messages: []llm.Message{{Role: "narrator"}}}); err == nil {
		t.Error("expected error")
	}
}
