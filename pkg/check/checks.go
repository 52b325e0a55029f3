package check

import (
	"fmt"
	"reflect"
	"regexp"
)

func message(msgAndArgs []interface{}) string {
	switch {
	case len(msgAndArgs) == 1:
		if msg, ok := msgAndArgs[0].(string); ok {
			return msg
		}
		return fmt.Sprintf("%+v", msgAndArgs[0])
	case len(msgAndArgs) > 1:
		return fmt.Sprintf(msgAndArgs[0].(string), msgAndArgs[1:]...)
	default:
		return ""
	}
}

func check(ok bool, msgAndArgs []interface{}, internalFormat string, args ...interface{}) error {
	if ok {
		return nil
	}
	internal := fmt.Sprintf(internalFormat, args...)
	if msg := message(msgAndArgs); msg != "" {
		return fmt.Errorf("%s: %s", msg, internal)
	}
	return fmt.Errorf("%s", internal)
}

// True checks whether the condition is true. This method returns an error with
// the provided message if the check fails.
func True(condition bool, msgAndArgs ...interface{}) error {
	return check(condition, msgAndArgs, "expected true, got false")
}

// Equal checks whether the actual value is equal to the expected value.
func Equal(actual, expected interface{}, msgAndArgs ...interface{}) error {
	return check(reflect.DeepEqual(actual, expected), msgAndArgs,
		"%v != %v", actual, expected)
}

// NotEmpty checks whether the provided string is non-empty.
func NotEmpty(actual string, msgAndArgs ...interface{}) error {
	return check(len(actual) > 0, msgAndArgs, "%q must be non-empty", actual)
}

// GreaterThan checks whether the actual value is greater than the expected
// value.
func GreaterThan(actual, expected int, msgAndArgs ...interface{}) error {
	return check(actual > expected, msgAndArgs, "%v is not greater than %v", actual, expected)
}

// GreaterThanOrEqualTo checks whether the actual value is greater than or
// equal to the expected value.
func GreaterThanOrEqualTo(actual, expected float64, msgAndArgs ...interface{}) error {
	return check(actual >= expected, msgAndArgs, "%v is not >= %v", actual, expected)
}

// LessThanOrEqualTo checks whether the actual value is less than or equal to
// the expected value.
func LessThanOrEqualTo(actual, expected float64, msgAndArgs ...interface{}) error {
	return check(actual <= expected, msgAndArgs, "%v is not <= %v", actual, expected)
}

// In checks whether the actual value is contained in the expected list.
func In(actual string, expected []string, msgAndArgs ...interface{}) error {
	for _, value := range expected {
		if value == actual {
			return nil
		}
	}
	return check(false, msgAndArgs, "%q not in %v", actual, expected)
}

// Match checks whether the actual value matches the provided regular
// expression.
func Match(actual string, pattern *regexp.Regexp, msgAndArgs ...interface{}) error {
	return check(pattern.MatchString(actual), msgAndArgs,
		"%q does not match %q", actual, pattern.String())
}
