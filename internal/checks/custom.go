package checks

import (
	"fmt"

	"dqmon/domain/core"
	"dqmon/domain/quality"
	"dqmon/internal"

	"github.com/google/cel-go/cel"
)

// exprCostLimit bounds the work of one EXPR evaluation
const exprCostLimit = 1000000

// RuleEvaluator evaluates custom rules one at a time. EXPR rules are compiled
// against a CEL environment exposing `row` (column name to cell) and `value`
// (the rule column's cell, when a column is set).
type RuleEvaluator struct {
	env *cel.Env
}

// NewRuleEvaluator builds the CEL environment for EXPR rules
func NewRuleEvaluator() (*RuleEvaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("row", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("value", cel.DynType),
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &RuleEvaluator{env: env}, nil
}

// Violations returns the rows violating one rule, in ascending order.
// Null cells never violate MAX or MIN.
func (e *RuleEvaluator) Violations(ds *quality.Dataset, rule quality.CustomRule) ([]int, error) {
	cond, err := quality.ParseCondition(string(rule.Condition))
	if err != nil {
		return nil, err
	}
	if cond == quality.ConditionExpr {
		return e.exprViolations(ds, rule)
	}

	values, err := ds.Column(rule.Column)
	if err != nil {
		return nil, err
	}
	rows := []int{}
	for i, v := range values {
		if v.IsNull() {
			continue
		}
		f, ok := v.Float64()
		if !ok {
			return nil, fmt.Errorf("%w: row %d value %s in column %q",
				core.ErrNonComparable, i, v, rule.Column)
		}
		if (cond == quality.ConditionMax && f > rule.Threshold) ||
			(cond == quality.ConditionMin && f < rule.Threshold) {
			rows = append(rows, i)
		}
	}
	return rows, nil
}

func (e *RuleEvaluator) exprViolations(ds *quality.Dataset, rule quality.CustomRule) ([]int, error) {
	if rule.Expression == "" {
		return nil, fmt.Errorf("EXPR rule has no expression")
	}
	if rule.Column != "" && !ds.HasColumn(rule.Column) {
		return nil, core.NewColumnNotFoundError(rule.Column)
	}

	ast, issues := e.env.Compile(rule.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}
	prg, err := e.env.Program(ast, cel.CostLimit(exprCostLimit))
	if err != nil {
		return nil, fmt.Errorf("program creation error: %w", err)
	}

	rows := []int{}
	for i := 0; i < ds.Len(); i++ {
		row := ds.Row(i)
		var value any
		if rule.Column != "" {
			v := row[rule.Column]
			if v.IsNull() {
				continue
			}
			value = v.Native()
		}
		facts := make(map[string]any, len(row))
		for col, v := range row {
			facts[col] = v.Native()
		}

		out, _, err := prg.Eval(map[string]any{"row": facts, "value": value})
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		matched, ok := out.Value().(bool)
		if !ok {
			return nil, fmt.Errorf("row %d: expression returned %T, want bool", i, out.Value())
		}
		if matched {
			rows = append(rows, i)
		}
	}
	return rows, nil
}

// CheckCustomRules evaluates the rules in order. A rule that cannot be
// evaluated yields an error finding and the remaining rules still run.
func CheckCustomRules(ds *quality.Dataset, rules []quality.CustomRule) []quality.Finding {
	eval, err := NewRuleEvaluator()
	findings := make([]quality.Finding, 0, len(rules))
	for _, rule := range rules {
		if err != nil {
			findings = append(findings, ruleErrorFinding(rule, err))
			continue
		}
		if f, ok := evaluateRule(eval, ds, rule); ok {
			findings = append(findings, f)
		}
	}
	return findings
}

func evaluateRule(eval *RuleEvaluator, ds *quality.Dataset, rule quality.CustomRule) (f quality.Finding, ok bool) {
	rule = rule.Normalized()
	defer func() {
		if r := recover(); r != nil {
			f, ok = ruleErrorFinding(rule, fmt.Errorf("panic: %v", r)), true
		}
	}()

	rows, err := eval.Violations(ds, rule)
	if err != nil {
		return ruleErrorFinding(rule, err), true
	}
	if len(rows) == 0 {
		return quality.Finding{}, false
	}
	f = quality.NewFinding(quality.KindCustomRule,
		fmt.Sprintf("Custom Rule Violation (%s): %d rows", rule, len(rows)),
		len(rows), rows)
	details := map[string]any{
		"column":    rule.Column,
		"condition": string(rule.Condition),
	}
	if rule.Condition == quality.ConditionExpr {
		details["expression"] = rule.Expression
	} else {
		details["threshold"] = rule.Threshold
	}
	return f.WithDetails(details), true
}

func ruleErrorFinding(rule quality.CustomRule, err error) quality.Finding {
	return quality.NewErrorFinding(quality.KindCustomRule,
		fmt.Sprintf("Custom Rule Error (%s): %v", rule, err),
		core.NewRuleError(rule.String(), err))
}

// CustomRuleCheck runs the configured custom rules
type CustomRuleCheck struct {
	log *internal.Logger
}

// NewCustomRuleCheck creates the custom-rule check
func NewCustomRuleCheck(log *internal.Logger) *CustomRuleCheck {
	return &CustomRuleCheck{log: log}
}

func (c *CustomRuleCheck) Name() string              { return "custom_rules" }
func (c *CustomRuleCheck) Kind() quality.FindingKind { return quality.KindCustomRule }

func (c *CustomRuleCheck) Run(ds *quality.Dataset, cfg quality.ThresholdConfig) ([]quality.Finding, error) {
	findings := CheckCustomRules(ds, cfg.CustomRules)
	for _, f := range findings {
		if f.IsError() {
			c.log.Error("%s", f.Message)
		} else {
			c.log.Warn("%s", f.Message)
		}
	}
	return findings, nil
}
