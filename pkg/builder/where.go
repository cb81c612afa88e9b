package builder

import (
	"fmt"
	"strings"
)

// buildWhere renders conditions starting at placeholder $paramStart.
// It returns an empty string when there are no conditions.
func buildWhere(conditions []Condition, paramStart int) (string, []any, error) {
	if len(conditions) == 0 {
		return "", nil, nil
	}
	sql, args, err := buildConditions(conditions, paramStart)
	if err != nil {
		return "", nil, err
	}
	return " WHERE " + sql, args, nil
}

func buildConditions(conditions []Condition, paramStart int) (string, []any, error) {
	var b strings.Builder
	var args []any
	paramNum := paramStart

	for i, cond := range conditions {
		if i > 0 {
			logic := cond.Logic
			if logic == "" {
				logic = LogicAnd
			}
			b.WriteString(" " + string(logic) + " ")
		}

		var part string
		var partArgs []any
		var err error
		if len(cond.Group) > 0 {
			part, partArgs, err = buildConditions(cond.Group, paramNum)
			part = "(" + part + ")"
		} else {
			part, partArgs, err = buildCondition(cond, paramNum)
		}
		if err != nil {
			return "", nil, err
		}
		if cond.Not {
			part = "NOT (" + part + ")"
		}

		b.WriteString(part)
		args = append(args, partArgs...)
		paramNum += len(partArgs)
	}

	return b.String(), args, nil
}

func buildCondition(cond Condition, paramNum int) (string, []any, error) {
	if cond.Column == "" {
		return "", nil, fmt.Errorf("condition has no column")
	}
	switch cond.Operator {
	case OpEqual, OpNotEqual, OpILike:
		return fmt.Sprintf("%s %s $%d", cond.Column, cond.Operator, paramNum), []any{cond.Value}, nil
	case OpAny:
		return fmt.Sprintf("%s = ANY($%d)", cond.Column, paramNum), []any{cond.Value}, nil
	case OpIsNotNull:
		return fmt.Sprintf("%s %s", cond.Column, cond.Operator), nil, nil
	default:
		return "", nil, fmt.Errorf("unknown operator: %s", cond.Operator)
	}
}

// Eq creates an equality condition.
func Eq(column string, value any) Condition {
	return Condition{Column: column, Operator: OpEqual, Value: value, Logic: LogicAnd}
}

// NotEq creates a not-equal condition.
func NotEq(column string, value any) Condition {
	return Condition{Column: column, Operator: OpNotEqual, Value: value, Logic: LogicAnd}
}

// In matches any element of values, which must be a typed slice such as
// []int64 so pgx can encode it as an array parameter.
func In(column string, values any) Condition {
	return Condition{Column: column, Operator: OpAny, Value: values, Logic: LogicAnd}
}

// ILike creates a case-insensitive pattern condition.
func ILike(column string, pattern string) Condition {
	return Condition{Column: column, Operator: OpILike, Value: pattern, Logic: LogicAnd}
}

// IsNotNull creates an IS NOT NULL condition.
func IsNotNull(column string) Condition {
	return Condition{Column: column, Operator: OpIsNotNull, Logic: LogicAnd}
}

// Or sets the logic operator to OR for the condition.
func Or(cond Condition) Condition {
	cond.Logic = LogicOr
	return cond
}

// Not negates a condition.
func Not(cond Condition) Condition {
	cond.Not = true
	return cond
}

// Group creates a parenthesized group of conditions.
func Group(conditions ...Condition) Condition {
	return Condition{Group: conditions, Logic: LogicAnd}
}
