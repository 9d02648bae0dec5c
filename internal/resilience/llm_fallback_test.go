package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/sceneforge/pkg/provider/llm"
	llmmock "github.com/MrWong99/sceneforge/pkg/provider/llm/mock"
)

func TestLLMFallback_Complete_PrimarySuccess(t *testing.T) {
	t.Parallel()
	primary := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "primary"}}
	secondary := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "secondary"}}

	fb := NewLLMFallback(primary, "primary", FallbackConfig{})
	fb.AddFallback("secondary", secondary)

	resp, err := fb.Complete(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "primary" {
		t.Errorf("content = %q", resp.Content)
	}
	if len(secondary.Calls()) != 0 {
		t.Errorf("secondary called %d times", len(secondary.Calls()))
	}
}

func TestLLMFallback_Complete_Failover(t *testing.T) {
	t.Parallel()
	primary := &llmmock.Provider{CompleteErr: errors.New("primary down")}
	secondary := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "secondary"}}

	fb := NewLLMFallback(primary, "primary", FallbackConfig{})
	fb.AddFallback("secondary", secondary)

	resp, err := fb.Complete(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "secondary" {
		t.Errorf("content = %q", resp.Content)
	}
}

func TestLLMFallback_Complete_AllFail(t *testing.T) {
	t.Parallel()
	fb := NewLLMFallback(&llmmock.Provider{CompleteErr: errors.New("down")}, "primary", FallbackConfig{})
	if _, err := fb.Complete(context.Background(), llm.CompletionRequest{}); !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestLLMFallback_CapabilitiesFromPrimary(t *testing.T) {
	t.Parallel()
	primary := &llmmock.Provider{ModelCapabilities: llm.ModelCapabilities{ContextWindow: 1000}}
	secondary := &llmmock.Provider{ModelCapabilities: llm.ModelCapabilities{ContextWindow: 2000}}
	fb := NewLLMFallback(primary, "primary", FallbackConfig{})
	fb.AddFallback("secondary", secondary)

	if got := fb.Capabilities().ContextWindow; got != 1000 {
		t.Errorf("ContextWindow = %d, want 1000", got)
	}
	if n, err := fb.CountTokens(nil); err != nil || n != 0 {
		t.Errorf("CountTokens = %d, %v", n, err)
	}
	if len(fb.States()) != 2 {
		t.Errorf("States len = %d", len(fb.States()))
	}
}
