package check

import (
	"regexp"
	"testing"

	"gotest.tools/assert"
)

func TestTrue(t *testing.T) {
	assert.NilError(t, True(true))
	assert.ErrorContains(t, True(false, "field A must be true"),
		"field A must be true: expected true, got false")
}

func TestGreaterThan(t *testing.T) {
	assert.NilError(t, GreaterThan(1, 0))
	assert.ErrorContains(t, GreaterThan(0, 0), "0 is not greater than 0")
	assert.ErrorContains(t, GreaterThan(-3, 0, "epochs must be positive"),
		"epochs must be positive")
}

func TestEqual(t *testing.T) {
	assert.NilError(t, Equal([]string{"v0"}, []string{"v0"}))
	assert.ErrorContains(t, Equal(1, 2), "1 != 2")
}

func TestIn(t *testing.T) {
	assert.NilError(t, In("a", []string{"a", "b"}))
	assert.ErrorContains(t, In("c", []string{"a", "b"}), `"c" not in [a b]`)
}

func TestMatch(t *testing.T) {
	versionPattern := regexp.MustCompile(`^v\d+$`)
	assert.NilError(t, Match("v12", versionPattern))
	assert.ErrorContains(t, Match("version-12", versionPattern), "does not match")
}

func TestRange(t *testing.T) {
	assert.NilError(t, GreaterThanOrEqualTo(0.0, 0.0))
	assert.NilError(t, LessThanOrEqualTo(1.0, 1.0))
	assert.ErrorContains(t, GreaterThanOrEqualTo(-0.1, 0.0), "is not >=")
	assert.ErrorContains(t, LessThanOrEqualTo(1.1, 1.0), "is not <=")
}
