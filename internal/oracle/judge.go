package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrWong99/sceneforge/internal/scene"
	"github.com/MrWong99/sceneforge/internal/transcript"
	"github.com/MrWong99/sceneforge/pkg/provider/llm"
)

// DefaultJudgeWindow is how many transcript entries the judge sees.
const DefaultJudgeWindow = 20

const judgeSystemPrompt = `You judge improvised scenes. Decide whether the scene's goal has been reached in the transcript.
Answer YES or NO on the first line. On the second line give one short sentence explaining why.`

// ErrUnclearVerdict is returned when the judge's answer starts with neither
// YES nor NO.
var ErrUnclearVerdict = errors.New("oracle: judge answered neither YES nor NO")

// JudgeOption configures an [LLMJudge].
type JudgeOption func(*LLMJudge)

// WithJudgeWindow sets how many recent entries are shown to the judge.
func WithJudgeWindow(n int) JudgeOption {
	return func(j *LLMJudge) {
		if n > 0 {
			j.window = n
		}
	}
}

// WithJudgeEvery makes the judge run only after every n-th beat. Other beats
// return a not-done verdict without a provider call.
func WithJudgeEvery(n int) JudgeOption {
	return func(j *LLMJudge) {
		if n > 0 {
			j.every = n
		}
	}
}

// LLMJudge asks a language model whether the scene goal has been reached.
type LLMJudge struct {
	provider llm.Provider
	window   int
	every    int
}

var _ Oracle = (*LLMJudge)(nil)

// NewLLMJudge creates a judge backed by provider.
func NewLLMJudge(provider llm.Provider, opts ...JudgeOption) (*LLMJudge, error) {
	if provider == nil {
		return nil, errors.New("oracle: judge provider must not be nil")
	}
	j := &LLMJudge{provider: provider, window: DefaultJudgeWindow, every: 1}
	for _, o := range opts {
		o(j)
	}
	return j, nil
}

// Evaluate implements [Oracle].
func (j *LLMJudge) Evaluate(ctx context.Context, entries []scene.Entry, cfg scene.Config) (Verdict, error) {
	if len(entries) == 0 {
		return Verdict{}, nil
	}
	if beat := entries[len(entries)-1].Beat(); (beat+1)%j.every != 0 {
		return Verdict{}, nil
	}

	recent := entries[max(0, len(entries)-j.window):]
	var sb strings.Builder
	sb.WriteString("## Scene Goal\n")
	sb.WriteString(cfg.Prompt)
	sb.WriteString("\n\n## Transcript\n")
	sb.WriteString(transcript.Render(recent))

	resp, err := j.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: judgeSystemPrompt,
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: sb.String()}},
		MaxTokens:    64,
	})
	if err != nil {
		return Verdict{}, fmt.Errorf("oracle: judge: %w", err)
	}
	if resp == nil {
		return Verdict{}, errors.New("oracle: judge returned no response")
	}
	return parseJudgement(resp.Content)
}

// parseJudgement reads a YES/NO answer and the optional reason after it.
func parseJudgement(text string) (Verdict, error) {
	text = strings.TrimSpace(text)
	head, reason, _ := strings.Cut(text, "\n")
	head = strings.TrimLeft(head, "*#> \t")
	word := strings.ToUpper(head)
	reason = strings.TrimSpace(reason)

	switch {
	case strings.HasPrefix(word, "YES"):
		if reason == "" {
			reason = strings.TrimSpace(strings.TrimLeft(head[3:], ".,:;!-* "))
		}
		return Verdict{Done: true, Reason: reason}, nil
	case strings.HasPrefix(word, "NO"):
		return Verdict{Reason: reason}, nil
	default:
		return Verdict{}, fmt.Errorf("%w: %q", ErrUnclearVerdict, truncateAnswer(text))
	}
}

func truncateAnswer(s string) string {
	const limit = 80
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}
