package quality

import (
	"fmt"
	"strings"

	"dqmon/domain/core"
)

// Condition selects how a custom rule compares a column against its threshold
type Condition string

const (
	ConditionMax Condition = "MAX" // flag rows where value > threshold
	ConditionMin Condition = "MIN" // flag rows where value < threshold
	// ConditionExpr flags rows where a boolean CEL expression over `row` is true
	ConditionExpr Condition = "EXPR"
)

// ParseCondition accepts any letter case ("max", "Min", ...)
func ParseCondition(s string) (Condition, error) {
	c := Condition(strings.ToUpper(strings.TrimSpace(s)))
	switch c {
	case ConditionMax, ConditionMin, ConditionExpr:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", core.ErrUnknownCondition, s)
	}
}

// UnmarshalText normalizes the condition's case so config files may use "max"/"min"
func (c *Condition) UnmarshalText(text []byte) error {
	// unknown conditions are kept verbatim and fail at evaluation time, per rule
	if parsed, err := ParseCondition(string(text)); err == nil {
		*c = parsed
		return nil
	}
	*c = Condition(text)
	return nil
}

// CustomRule is a user-defined per-column constraint
type CustomRule struct {
	Column     string    `json:"column" mapstructure:"column"`
	Condition  Condition `json:"condition" mapstructure:"condition"`
	Threshold  float64   `json:"threshold" mapstructure:"threshold"`
	Expression string    `json:"expression,omitempty" mapstructure:"expression"`
}

// Normalized returns the rule with a recognised condition in canonical case.
// Unknown conditions are left as they are.
func (r CustomRule) Normalized() CustomRule {
	if c, err := ParseCondition(string(r.Condition)); err == nil {
		r.Condition = c
	}
	return r
}

// String renders the rule the way findings refer to it
func (r CustomRule) String() string {
	r = r.Normalized()
	if r.Condition == ConditionExpr {
		return fmt.Sprintf("%s EXPR %s", r.Column, r.Expression)
	}
	return fmt.Sprintf("%s %s %s", r.Column, r.Condition, formatNumber(r.Threshold))
}

// ThresholdConfig holds the limits consumed by the checks for one cycle
type ThresholdConfig struct {
	MissingValueLimit int          `json:"missing_value_limit"`
	DuplicateLimit    int          `json:"duplicate_limit"`
	Contamination     float64      `json:"contamination"`
	CustomRules       []CustomRule `json:"custom_rules"`
}

// DefaultThresholdConfig returns zero tolerance for missing and duplicate
// values and a 10% contamination estimate
func DefaultThresholdConfig() ThresholdConfig {
	return ThresholdConfig{
		MissingValueLimit: 0,
		DuplicateLimit:    0,
		Contamination:     0.1,
	}
}

// Validate checks the numeric ranges. Custom rules are not validated here:
// a broken rule fails alone at evaluation time.
func (c ThresholdConfig) Validate() error {
	if c.MissingValueLimit < 0 {
		return fmt.Errorf("%w: missing_value_limit %d < 0", core.ErrInvalidThreshold, c.MissingValueLimit)
	}
	if c.DuplicateLimit < 0 {
		return fmt.Errorf("%w: duplicate_limit %d < 0", core.ErrInvalidThreshold, c.DuplicateLimit)
	}
	if err := ValidateContamination(c.Contamination); err != nil {
		return err
	}
	return nil
}

// ValidateContamination requires a fraction strictly between 0 and 1
func ValidateContamination(c float64) error {
	if !(c > 0 && c < 1) {
		return fmt.Errorf("%w: contamination %v not in (0,1)", core.ErrInvalidThreshold, c)
	}
	return nil
}

func formatNumber(f float64) string {
	return NewFloatValue(f).String()
}
