package llm_test

import (
	"testing"

	"github.com/MrWong99/sceneforge/pkg/provider/llm"
)

func TestLookupCapabilities(t *testing.T) {
	t.Parallel()

	tests := []struct {
		model      string
		wantWindow int
		wantOutput int
	}{
		{"gpt-4o-mini", 128_000, 16_384},
		{"GPT-4o-2024-08-06", 128_000, 16_384},
		{"gpt-4", 8_192, 4_096},
		{"claude-3-opus-20240229", 200_000, 4_096},
		{"anthropic/claude-3-5-haiku-latest", 200_000, 8_192},
		{"gemini-1.5-pro", 2_097_152, 8_192},
		{"llama3.1", llm.DefaultCapabilities.ContextWindow, llm.DefaultCapabilities.MaxOutputTokens},
	}
	for _, tc := range tests {
		t.Run(tc.model, func(t *testing.T) {
			t.Parallel()
			got := llm.LookupCapabilities(tc.model)
			if got.ContextWindow != tc.wantWindow || got.MaxOutputTokens != tc.wantOutput {
				t.Errorf("LookupCapabilities(%q) = %+v, want window %d output %d",
					tc.model, got, tc.wantWindow, tc.wantOutput)
			}
		})
	}
}

func TestEstimateTokens(t *testing.T) {
	t.Parallel()
	got := llm.EstimateTokens([]llm.Message{
		{Role: llm.RoleSystem, Content: "12345678"}, // 2 + 4
		{Role: llm.RoleUser, Content: "1"},          // 1 + 4
	})
	if got != 11 {
		t.Errorf("EstimateTokens = %d, want 11", got)
	}
	if llm.EstimateTokens(nil) != 0 {
		t.Error("EstimateTokens(nil) should be 0")
	}
}

func TestUsage_Add(t *testing.T) {
	t.Parallel()
	a := llm.Usage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3}
	b := llm.Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30}
	want := llm.Usage{PromptTokens: 11, CompletionTokens: 22, TotalTokens: 33}
	if got := a.Add(b); got != want {
		t.Errorf("Add = %+v", got)
	}
}
