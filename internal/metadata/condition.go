package metadata

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ConditionClause is one row of a condition list. A sequence of clauses forms
// a single boolean expression: clauses are joined left to right by their
// connective, brackets nest sub-expressions.
type ConditionClause struct {
	Connective   string   `json:"connective,omitempty"` // "and" / "or", ignored on the first clause
	BracketLeft  Brackets `json:"bracket_left,omitempty"`
	Field        string   `json:"field"`
	Operator     string   `json:"operator"`
	Value        any      `json:"value,omitempty"`
	BracketRight Brackets `json:"bracket_right,omitempty"`
}

// Brackets is a count of parentheses. In stored definitions it may appear as
// a number, a boolean or a literal string of parentheses such as "((".
type Brackets int

// MaxBrackets is the most parentheses one clause may open or close.
const MaxBrackets = 32

func checkBrackets(n int) error {
	if n < 0 {
		return fmt.Errorf("negative bracket count %d", n)
	}
	if n > MaxBrackets {
		return fmt.Errorf("bracket count %d exceeds %d", n, MaxBrackets)
	}
	return nil
}

func (b *Brackets) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		*b = 0
	case bool:
		if v {
			*b = 1
		} else {
			*b = 0
		}
	case float64:
		if v < 0 || v > MaxBrackets || v != math.Trunc(v) {
			return fmt.Errorf("invalid bracket count %v", v)
		}
		*b = Brackets(v)
	case string:
		s := strings.TrimSpace(v)
		if n, err := strconv.Atoi(s); err == nil {
			if err := checkBrackets(n); err != nil {
				return err
			}
			*b = Brackets(n)
			return nil
		}
		n := 0
		for _, r := range s {
			if r != '(' && r != ')' {
				return fmt.Errorf("invalid bracket marker %q", v)
			}
			n++
		}
		if err := checkBrackets(n); err != nil {
			return err
		}
		*b = Brackets(n)
	default:
		return fmt.Errorf("invalid bracket marker %s", string(data))
	}
	return nil
}
