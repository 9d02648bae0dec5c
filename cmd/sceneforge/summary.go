package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/MrWong99/sceneforge/internal/config"
	"github.com/MrWong99/sceneforge/internal/scene"
	"github.com/MrWong99/sceneforge/internal/store"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Width(14)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#50C878"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value)
}

func outcome(res scene.Result) string {
	reason := string(res.Metadata.CompletionReason)
	if res.Metadata.OracleReason != "" {
		reason += ": " + res.Metadata.OracleReason
	}
	if !res.Success {
		return failStyle.Render(reason + " (failed)")
	}
	if res.Metadata.GoalAchieved {
		return okStyle.Render(reason)
	}
	return reason
}

// renderSummary draws the boxed run summary printed after a scene.
func renderSummary(res scene.Result, files []string) string {
	md := res.Metadata
	rows := []string{
		titleStyle.Render("Scene " + md.SceneID),
		row("Run", md.RunID),
		row("Outcome", outcome(res)),
		row("Beats", fmt.Sprintf("%d", md.TotalBeats)),
		row("Participants", fmt.Sprintf("%d", md.ParticipantCount)),
	}
	if md.Usage != nil {
		rows = append(rows, row("Tokens", fmt.Sprintf("%d (%d prompt, %d completion)",
			md.Usage.TotalTokens, md.Usage.PromptTokens, md.Usage.CompletionTokens)))
	}
	if !md.StartedAt.IsZero() && !md.FinishedAt.IsZero() {
		rows = append(rows, row("Duration", md.FinishedAt.Sub(md.StartedAt).Round(time.Millisecond).String()))
	}
	if n := len(md.Errors); n > 0 {
		rows = append(rows, row("Errors", failStyle.Render(fmt.Sprintf("%d", n))))
	}
	if n := len(md.Warnings); n > 0 {
		rows = append(rows, row("Warnings", fmt.Sprintf("%d", n)))
	}
	if res.Err != nil {
		rows = append(rows, row("Failure", failStyle.Render(res.Err.Error())))
	}
	for _, f := range files {
		rows = append(rows, row("Written", f))
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// renderCast draws the cast sheet printed by validate.
func renderCast(cfg *config.Config) string {
	sc := cfg.Scene
	rows := []string{
		titleStyle.Render("Scene " + sc.ID),
		row("Provider", providerLabel(cfg.Providers.LLM)),
		row("Max beats", fmt.Sprintf("%d", sc.MaxBeats)),
		row("Reply timeout", sc.ReplyTimeout.String()),
		row("Oracle", string(sc.Oracle.Kind)),
	}
	if sc.FirstResponder != "" {
		rows = append(rows, row("Opens", sc.FirstResponder))
	}
	if len(cfg.Providers.Fallbacks) > 0 {
		names := make([]string, len(cfg.Providers.Fallbacks))
		for i, fb := range cfg.Providers.Fallbacks {
			names[i] = providerLabel(fb)
		}
		rows = append(rows, row("Fallbacks", strings.Join(names, ", ")))
	}
	byID := make(map[string]config.CharacterConfig, len(cfg.Characters))
	for _, c := range cfg.Characters {
		byID[c.ID] = c
	}
	rows = append(rows, "", titleStyle.Render("Cast"))
	for _, id := range sc.Participants {
		c := byID[id]
		line := c.Character().DisplayName()
		if c.Goal != "" {
			line += " wants " + c.Goal
		}
		rows = append(rows, row(id, line))
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func providerLabel(e config.ProviderEntry) string {
	if e.Model == "" {
		return e.Name
	}
	return e.Name + "/" + e.Model
}

// renderRuns lists archived runs newest first.
func renderRuns(sceneID string, runs []store.Run) string {
	if len(runs) == 0 {
		return fmt.Sprintf("No archived runs for scene %q.", sceneID)
	}
	rows := []string{titleStyle.Render("Runs of " + sceneID)}
	for _, r := range runs {
		status := okStyle.Render("ok")
		if !r.Success {
			status = failStyle.Render("failed")
		}
		rows = append(rows, row(r.Metadata.RunID, fmt.Sprintf("%s  %s  %d beats  %s",
			r.Metadata.StartedAt.Format(time.DateTime), status,
			r.Metadata.TotalBeats, r.Metadata.CompletionReason)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}
