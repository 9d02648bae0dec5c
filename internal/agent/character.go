package agent

import (
	"errors"
	"fmt"
	"strings"
)

// Character is the persona behind one scene participant.
type Character struct {
	// ID matches the participant identifier in the scene config.
	ID string

	// Name is the in-world display name. Defaults to ID.
	Name string

	// Personality is free text injected into the system prompt.
	Personality string

	// Goal is what the character wants out of the scene, if anything.
	Goal string

	// BehaviorRules are hard constraints, rendered as a numbered list.
	BehaviorRules []string

	// Temperature and MaxTokens override provider defaults when non-zero.
	Temperature float64
	MaxTokens   int
}

// DisplayName returns Name, or ID when Name is blank.
func (c Character) DisplayName() string {
	if n := strings.TrimSpace(c.Name); n != "" {
		return n
	}
	return c.ID
}

// Validate reports every problem with c.
func (c Character) Validate() error {
	var errs []error
	if strings.TrimSpace(c.ID) == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature %.2f outside [0, 2]", c.Temperature))
	}
	if c.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("max_tokens %d must not be negative", c.MaxTokens))
	}
	return errors.Join(errs...)
}
