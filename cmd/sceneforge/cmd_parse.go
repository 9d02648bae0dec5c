package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrWong99/sceneforge/internal/parser"
	"github.com/MrWong99/sceneforge/internal/scene"
)

// eventJSON is the printed form of a parsed reply.
type eventJSON struct {
	Action    scene.Action `json:"action"`
	Target    string       `json:"target,omitempty"`
	Tone      string       `json:"tone"`
	Content   string       `json:"content,omitempty"`
	Nonverbal string       `json:"nonverbal,omitempty"`
	After     string       `json:"after,omitempty"`
	Warning   string       `json:"warning,omitempty"`
}

func toEventJSON(ev scene.Event) eventJSON {
	a := ev.Annotations()
	out := eventJSON{
		Action:    ev.Action(),
		Target:    ev.Addressee(),
		Tone:      a.Tone,
		Content:   ev.Utterance(),
		Nonverbal: a.Nonverbal,
		Warning:   a.Warning,
	}
	if in, ok := ev.(scene.Interrupt); ok {
		out.After = in.After
	}
	return out
}

func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse [reply...]",
		Short: "Parse agent replies and print the extracted events as JSON",
		Long: "Parse runs each argument through the reply parser and prints one JSON\n" +
			"object per reply. Without arguments every non-empty stdin line is parsed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			if len(args) > 0 {
				for _, raw := range args {
					if err := enc.Encode(toEventJSON(parser.Parse(raw))); err != nil {
						return err
					}
				}
				return nil
			}

			sc := bufio.NewScanner(cmd.InOrStdin())
			sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
			for sc.Scan() {
				line := sc.Text()
				if strings.TrimSpace(line) == "" {
					continue
				}
				if err := enc.Encode(toEventJSON(parser.Parse(line))); err != nil {
					return err
				}
			}
			if err := sc.Err(); err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			return nil
		},
	}
}
