package assertions

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

type Operator int

const (
	OpEquals Operator = iota
	OpNotEquals
	OpContains
	OpNotContains
	OpStartsWith
	OpEndsWith
	OpMatches
	OpGreaterThan
	OpGreaterOrEqual
	OpLessThan
	OpLessOrEqual
	OpEmpty
	OpNotEmpty
)

var operatorNames = map[Operator]string{
	OpEquals:         "equals",
	OpNotEquals:      "notEquals",
	OpContains:       "contains",
	OpNotContains:    "notContains",
	OpStartsWith:     "startsWith",
	OpEndsWith:       "endsWith",
	OpMatches:        "matches",
	OpGreaterThan:    ">",
	OpGreaterOrEqual: ">=",
	OpLessThan:       "<",
	OpLessOrEqual:    "<=",
	OpEmpty:          "empty",
	OpNotEmpty:       "notEmpty",
}

func (o Operator) String() string {
	if s, ok := operatorNames[o]; ok {
		return s
	}
	return fmt.Sprintf("Operator(%d)", int(o))
}

// ParseOperator accepts the operator names above plus the symbolic
// forms ==, != and the lowercase spellings.
func ParseOperator(s string) (Operator, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "equals", "==", "eq":
		return OpEquals, nil
	case "notequals", "!=", "ne":
		return OpNotEquals, nil
	case "contains":
		return OpContains, nil
	case "notcontains":
		return OpNotContains, nil
	case "startswith":
		return OpStartsWith, nil
	case "endswith":
		return OpEndsWith, nil
	case "matches":
		return OpMatches, nil
	case ">", "gt":
		return OpGreaterThan, nil
	case ">=", "gte":
		return OpGreaterOrEqual, nil
	case "<", "lt":
		return OpLessThan, nil
	case "<=", "lte":
		return OpLessOrEqual, nil
	case "empty":
		return OpEmpty, nil
	case "notempty":
		return OpNotEmpty, nil
	}
	return 0, fmt.Errorf("unknown operator %q", s)
}

// NeedsExpected reports whether o compares against a value.
func (o Operator) NeedsExpected() bool {
	return o != OpEmpty && o != OpNotEmpty
}

type Result struct {
	Passed   bool
	Message  string
	Subject  string
	Operator string
	Expected string
	Actual   string
}

// Evaluate applies op to actual and expected. Subject names what actual
// was read from and only appears in messages.
func Evaluate(subject, actual string, op Operator, expected string) *Result {
	result := &Result{
		Subject:  subject,
		Operator: op.String(),
		Expected: expected,
		Actual:   actual,
	}
	result.Passed, result.Message = compare(actual, op, expected)
	if !result.Passed && subject != "" {
		result.Message = subject + ": " + result.Message
	}
	return result
}

func compare(actual string, op Operator, expected string) (bool, string) {
	switch op {
	case OpEquals:
		return equals(actual, expected)
	case OpNotEquals:
		if passed, _ := equals(actual, expected); passed {
			return false, fmt.Sprintf("expected not to equal %q", expected)
		}
		return true, ""
	case OpContains:
		return contains(actual, expected)
	case OpNotContains:
		if passed, _ := contains(actual, expected); passed {
			return false, fmt.Sprintf("expected %q not to contain %q", actual, expected)
		}
		return true, ""
	case OpStartsWith:
		if strings.HasPrefix(actual, expected) {
			return true, ""
		}
		return false, fmt.Sprintf("expected %q to start with %q", actual, expected)
	case OpEndsWith:
		if strings.HasSuffix(actual, expected) {
			return true, ""
		}
		return false, fmt.Sprintf("expected %q to end with %q", actual, expected)
	case OpMatches:
		return matches(actual, expected)
	case OpGreaterThan:
		return compareNumeric(actual, expected, ">")
	case OpGreaterOrEqual:
		return compareNumeric(actual, expected, ">=")
	case OpLessThan:
		return compareNumeric(actual, expected, "<")
	case OpLessOrEqual:
		return compareNumeric(actual, expected, "<=")
	case OpEmpty:
		if strings.TrimSpace(actual) == "" {
			return true, ""
		}
		return false, fmt.Sprintf("expected empty, got %q", actual)
	case OpNotEmpty:
		if strings.TrimSpace(actual) != "" {
			return true, ""
		}
		return false, "expected non-empty text"
	}
	return false, fmt.Sprintf("unknown operator: %v", op)
}

func equals(actual, expected string) (bool, string) {
	if actual == expected || strings.TrimSpace(actual) == strings.TrimSpace(expected) {
		return true, ""
	}
	return false, fmt.Sprintf("expected %q, got %q", expected, actual)
}

func contains(actual, expected string) (bool, string) {
	if strings.Contains(actual, expected) {
		return true, ""
	}
	return false, fmt.Sprintf("expected %q to contain %q", actual, expected)
}

func matches(actual, pattern string) (bool, string) {
	if len(pattern) > 1 && strings.HasPrefix(pattern, "/") && strings.HasSuffix(pattern, "/") {
		pattern = pattern[1 : len(pattern)-1]
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, fmt.Sprintf("invalid regex pattern: %v", err)
	}
	if re.MatchString(actual) {
		return true, ""
	}
	return false, fmt.Sprintf("expected %q to match /%s/", actual, pattern)
}

func compareNumeric(actual, expected, op string) (bool, string) {
	actualNum, aOk := toFloat64(actual)
	expectedNum, eOk := toFloat64(expected)
	if !aOk || !eOk {
		return false, fmt.Sprintf("cannot compare non-numeric values: %q %s %q", actual, op, expected)
	}

	var passed bool
	switch op {
	case ">":
		passed = actualNum > expectedNum
	case ">=":
		passed = actualNum >= expectedNum
	case "<":
		passed = actualNum < expectedNum
	case "<=":
		passed = actualNum <= expectedNum
	}
	if passed {
		return true, ""
	}
	return false, fmt.Sprintf("expected %v %s %v", actualNum, op, expectedNum)
}

var numberPattern = regexp.MustCompile(`-?\d[\d,]*(?:\.\d+)?`)

// toFloat64 reads the first number in s, ignoring thousands separators.
func toFloat64(s string) (float64, bool) {
	m := numberPattern.FindString(s)
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
