package builtin

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Call(t *testing.T) {
	r := NewRegistry()
	r.now = func() time.Time { return time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC) }

	tests := []struct {
		expr  string
		check func(t *testing.T, v string)
	}{
		{"date()", func(t *testing.T, v string) { assert.Equal(t, "2026-05-04", v) }},
		{"date('02/01/2006')", func(t *testing.T, v string) { assert.Equal(t, "04/05/2026", v) }},
		{"timestamp()", func(t *testing.T, v string) { assert.Equal(t, "1777896000", v) }},
		{"uuid()", func(t *testing.T, v string) { assert.Len(t, v, 36) }},
		{"ulid()", func(t *testing.T, v string) { assert.Len(t, v, 26) }},
		{"randomDigits(12)", func(t *testing.T, v string) {
			assert.Len(t, v, 12)
			assert.NotEqual(t, byte('0'), v[0])
		}},
		{"random(5, 5)", func(t *testing.T, v string) { assert.Equal(t, "5", v) }},
		{"amount(10, 20)", func(t *testing.T, v string) {
			f, err := strconv.ParseFloat(v, 64)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, f, 10.0)
			assert.LessOrEqual(t, f, 20.0)
			assert.Regexp(t, `^\d+\.\d{2}$`, v)
		}},
		{"randomEmail()", func(t *testing.T, v string) { assert.Contains(t, v, "@example.com") }},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			v, ok, err := r.Call(tt.expr)
			require.NoError(t, err)
			require.True(t, ok)
			tt.check(t, v)
		})
	}
}

func TestRegistry_CallErrors(t *testing.T) {
	r := NewRegistry()

	_, ok, err := r.Call("notAFunction()")
	assert.False(t, ok)
	assert.NoError(t, err)

	_, ok, _ = r.Call("plain text")
	assert.False(t, ok)

	_, ok, err = r.Call("random(10, 1)")
	assert.True(t, ok)
	assert.Error(t, err)

	_, _, err = r.Call("randomString(lots)")
	assert.Error(t, err)
}

func TestParseArgs(t *testing.T) {
	assert.Equal(t, []string{"a, b", "c"}, parseArgs(`"a, b", c`))
}
