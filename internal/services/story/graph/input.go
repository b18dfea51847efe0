package graph

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	apperrors "github.com/louisbranch/mythos/internal/platform/errors"
)

// InputType is the format a player's free-text answer must satisfy.
type InputType string

const (
	InputNone     InputType = ""
	InputPassword InputType = "password"
	InputNumeric  InputType = "numeric"
	InputText     InputType = "text"
)

// MaxTextInput bounds free-form text answers, in runes.
const MaxTextInput = 280

var passwordPattern = regexp.MustCompile(`^\d{4}$`)

// ParseInputType accepts the stored input type names.
func ParseInputType(value string) (InputType, error) {
	switch InputType(strings.TrimSpace(value)) {
	case InputNone:
		return InputNone, nil
	case InputPassword:
		return InputPassword, nil
	case InputNumeric:
		return InputNumeric, nil
	case InputText:
		return InputText, nil
	default:
		return "", fmt.Errorf("unknown input type %q", value)
	}
}

// InputRequirement describes an answer a choice or node demands.
type InputRequirement struct {
	Type   InputType
	Prompt string
}

// Expected returns a short human description of the accepted format.
func (r InputRequirement) Expected() string {
	switch r.Type {
	case InputPassword:
		return "a 4-digit numeric code"
	case InputNumeric:
		return "a whole number"
	case InputText:
		return fmt.Sprintf("up to %d characters", MaxTextInput)
	default:
		return ""
	}
}

// EffectiveInput returns the requirement that applies when choice is taken
// from node. A choice-level requirement wins over the node-level one.
func EffectiveInput(node Node, choice Choice) *InputRequirement {
	if choice.Input != nil && choice.Input.Type != InputNone {
		return choice.Input
	}
	if node.RequiresInput() {
		return node.Input
	}
	return nil
}

// ValidateInput checks value against req. A nil requirement accepts anything.
func ValidateInput(req *InputRequirement, value string) error {
	if req == nil || req.Type == InputNone {
		return nil
	}
	if strings.TrimSpace(value) == "" {
		return apperrors.WithMetadata(
			apperrors.CodeInputRequired,
			"choice requires an input value",
			map[string]string{"InputType": string(req.Type)},
		)
	}

	var valid bool
	switch req.Type {
	case InputPassword:
		valid = passwordPattern.MatchString(value)
	case InputNumeric:
		_, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		valid = err == nil
	case InputText:
		valid = utf8.RuneCountInString(strings.TrimSpace(value)) <= MaxTextInput
	}
	if !valid {
		return apperrors.WithMetadata(
			apperrors.CodeInvalidInputFormat,
			fmt.Sprintf("input does not match %s format", req.Type),
			map[string]string{"InputType": string(req.Type), "Expected": req.Expected()},
		)
	}
	return nil
}
