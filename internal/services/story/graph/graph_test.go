package graph

import (
	"strings"
	"testing"

	apperrors "github.com/louisbranch/mythos/internal/platform/errors"
)

func TestValidateInputPassword(t *testing.T) {
	req := &InputRequirement{Type: InputPassword}
	tests := []struct {
		value string
		code  apperrors.Code
	}{
		{value: "1234"},
		{value: "0000"},
		{value: "", code: apperrors.CodeInputRequired},
		{value: "   ", code: apperrors.CodeInputRequired},
		{value: "123", code: apperrors.CodeInvalidInputFormat},
		{value: "12345", code: apperrors.CodeInvalidInputFormat},
		{value: "12a4", code: apperrors.CodeInvalidInputFormat},
		{value: " 1234", code: apperrors.CodeInvalidInputFormat},
	}
	for _, tc := range tests {
		err := ValidateInput(req, tc.value)
		if tc.code == "" {
			if err != nil {
				t.Fatalf("ValidateInput(%q) = %v, want nil", tc.value, err)
			}
			continue
		}
		if got := apperrors.GetCode(err); got != tc.code {
			t.Fatalf("ValidateInput(%q) code = %q, want %q", tc.value, got, tc.code)
		}
	}
}

func TestValidateInputOtherTypes(t *testing.T) {
	if err := ValidateInput(nil, ""); err != nil {
		t.Fatalf("nil requirement: %v", err)
	}
	if err := ValidateInput(&InputRequirement{Type: InputNumeric}, "-42"); err != nil {
		t.Fatalf("numeric: %v", err)
	}
	if !apperrors.HasCode(ValidateInput(&InputRequirement{Type: InputNumeric}, "4.2"), apperrors.CodeInvalidInputFormat) {
		t.Fatal("expected decimal to be rejected")
	}
	if err := ValidateInput(&InputRequirement{Type: InputText}, "Aria of the Vale"); err != nil {
		t.Fatalf("text: %v", err)
	}
	long := strings.Repeat("é", MaxTextInput+1)
	if !apperrors.HasCode(ValidateInput(&InputRequirement{Type: InputText}, long), apperrors.CodeInvalidInputFormat) {
		t.Fatal("expected long text to be rejected")
	}
}

func TestEffectiveInputPrefersChoice(t *testing.T) {
	node := Node{Input: &InputRequirement{Type: InputText}}
	choice := Choice{Input: &InputRequirement{Type: InputPassword}}
	if got := EffectiveInput(node, choice); got == nil || got.Type != InputPassword {
		t.Fatalf("EffectiveInput = %+v, want password", got)
	}
	if got := EffectiveInput(node, Choice{}); got == nil || got.Type != InputText {
		t.Fatalf("EffectiveInput = %+v, want node text", got)
	}
	if got := EffectiveInput(Node{}, Choice{}); got != nil {
		t.Fatalf("EffectiveInput = %+v, want nil", got)
	}
}

func TestNodeChoiceHelpers(t *testing.T) {
	node := Node{Choices: []Choice{
		{ID: 1, Text: "Slot"},
		{ID: 2, Text: "Show me more options", Role: RoleRefresh},
	}}
	if _, ok := node.Choice(2); !ok {
		t.Fatal("expected choice 2")
	}
	if _, ok := node.Choice(3); ok {
		t.Fatal("did not expect choice 3")
	}
	if len(node.SlotChoices()) != 1 || len(node.RefreshChoices()) != 1 {
		t.Fatalf("slots/refresh = %d/%d", len(node.SlotChoices()), len(node.RefreshChoices()))
	}
}

func TestDraftValidate(t *testing.T) {
	valid := Draft{Title: "The Crossroads", Content: "The path splits.", Choices: []DraftChoice{{Text: "Left"}}}
	if err := valid.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	tests := map[string]Draft{
		"missing title":   {Content: "x"},
		"missing content": {Title: "x"},
		"bad kind":        {Title: "x", Content: "y", Kind: "maze"},
		"blank choice":    {Title: "x", Content: "y", Choices: []DraftChoice{{Text: " "}}},
		"negative next":   {Title: "x", Content: "y", Choices: []DraftChoice{{Text: "a", NextNodeID: -1}}},
		"bad role":        {Title: "x", Content: "y", Choices: []DraftChoice{{Text: "a", Role: "loop"}}},
	}
	for name, draft := range tests {
		if err := draft.Validate(); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestParseEnums(t *testing.T) {
	if kind, err := ParseNodeKind(""); err != nil || kind != KindStandard {
		t.Fatalf("ParseNodeKind(\"\") = %q, %v", kind, err)
	}
	if _, err := ParseInputType("retina"); err == nil {
		t.Fatal("expected unknown input type error")
	}
	if role, err := ParseChoiceRole("refresh"); err != nil || role != RoleRefresh {
		t.Fatalf("ParseChoiceRole = %q, %v", role, err)
	}
}
