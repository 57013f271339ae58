package content

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/troydota/api.collections.komodohype.dev/errs"
)

const (
	maxName        = 64
	maxDescription = 512
	maxColor       = 32
	maxPolls       = 25
	minChoices     = 2
	maxChoices     = 15
)

// NewCollection describes a collection to create together with its polls
// and their choices, in display order.
type NewCollection struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ColorA      string    `json:"colorA"`
	ColorB      string    `json:"colorB"`
	Polls       []NewPoll `json:"polls"`
}

type NewPoll struct {
	Name    string   `json:"name"`
	ColorA  string   `json:"colorA"`
	ColorB  string   `json:"colorB"`
	Choices []string `json:"choices"`
}

func checkName(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return errs.Invalid(field, "is required")
	}
	if utf8.RuneCountInString(v) > maxName {
		return errs.Invalid(field, fmt.Sprintf("must be at most %d characters", maxName))
	}
	return nil
}

func checkColor(field, v string) error {
	if utf8.RuneCountInString(v) > maxColor {
		return errs.Invalid(field, fmt.Sprintf("must be at most %d characters", maxColor))
	}
	return nil
}

// Validate reports the first malformed field.
func (c *NewCollection) Validate() error {
	if err := checkName("name", c.Name); err != nil {
		return err
	}
	if utf8.RuneCountInString(c.Description) > maxDescription {
		return errs.Invalid("description", fmt.Sprintf("must be at most %d characters", maxDescription))
	}
	if err := checkColor("colorA", c.ColorA); err != nil {
		return err
	}
	if err := checkColor("colorB", c.ColorB); err != nil {
		return err
	}
	if len(c.Polls) == 0 || len(c.Polls) > maxPolls {
		return errs.Invalid("polls", fmt.Sprintf("must hold between 1 and %d polls", maxPolls))
	}

	for i, p := range c.Polls {
		prefix := fmt.Sprintf("polls[%d].", i)
		if err := checkName(prefix+"name", p.Name); err != nil {
			return err
		}
		if err := checkColor(prefix+"colorA", p.ColorA); err != nil {
			return err
		}
		if err := checkColor(prefix+"colorB", p.ColorB); err != nil {
			return err
		}
		if len(p.Choices) < minChoices || len(p.Choices) > maxChoices {
			return errs.Invalid(prefix+"choices", fmt.Sprintf("must hold between %d and %d choices", minChoices, maxChoices))
		}
		for j, ch := range p.Choices {
			if err := checkName(fmt.Sprintf("%schoices[%d]", prefix, j), ch); err != nil {
				return err
			}
		}
	}

	return nil
}
