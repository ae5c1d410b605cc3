package version

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want Ordering
	}{
		{"1.2", "1.2.0", Equal},
		{"0.21", "0.21.0", Equal},
		{"0.20.1", "0.20", Greater},
		{"1.10", "1.9", Greater},
		{"2", "1.99.99", Greater},
		{"0.19.0", "0.20.1", Less},
		{"0.21.0", "0.21.0", Equal},
		{"01.002", "1.2", Equal},
		{" 1.0 ", "1", Equal},
		{"1.0.0.1", "1", Greater},
		{"1.99999999999999999999", "1.99999999999999999998", Greater},
		{"1.100000000000000000000", "1.99999999999999999999", Greater},
		{"1.000000000000000000000042", "1.42", Equal},
		{"0.00", "0", Equal},
	}
	for _, tt := range tests {
		t.Run(tt.a+"_vs_"+tt.b, func(t *testing.T) {
			got, err := Compare(tt.a, tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			rev, err := Compare(tt.b, tt.a)
			require.NoError(t, err)
			assert.Equal(t, -tt.want, rev, "comparison must be antisymmetric")
		})
	}
}

func TestCompareMalformed(t *testing.T) {
	for _, bad := range []string{"", "  ", "1.a", "1..2", ".1", "1.", "1.2-rc1", "v1.2", "1,2"} {
		t.Run(bad, func(t *testing.T) {
			_, err := Compare(bad, "1.0")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedVersion))

			_, err = Compare("1.0", bad)
			require.Error(t, err)

			var mv *MalformedVersionError
			require.True(t, errors.As(err, &mv))
			assert.Equal(t, bad, mv.Value)
		})
	}
}

func TestTotalOrder(t *testing.T) {
	vs := []string{"0", "0.1", "0.19.0", "0.20", "0.20.1", "0.21", "0.21.0", "0.21.1", "1", "1.9", "1.10", "2"}
	for _, a := range vs {
		for _, b := range vs {
			for _, c := range vs {
				ab, _ := Compare(a, b)
				bc, _ := Compare(b, c)
				ac, _ := Compare(a, c)
				if ab != Greater && bc != Greater {
					assert.NotEqual(t, Greater, ac, "%s <= %s <= %s", a, b, c)
				}
			}
		}
	}
}

func TestPredicates(t *testing.T) {
	ok, err := GTE("0.21.0", "0.21")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = GT("0.19.0", "0.20.1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = LT("0.19.0", "0.20.1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = LTE("0.20.1", "0.20.1.0")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = EQ("1", "1.0.0")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = GTE("nope", "1")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestCore(t *testing.T) {
	assert.Equal(t, "0.22.0", Core("v0.22.0-rc1"))
	assert.Equal(t, "0.21.0", Core("0.21.0"))
	assert.Equal(t, "1.2", Core("1.2+build7"))
	assert.Equal(t, "", Core(""))
}

func TestOrderingString(t *testing.T) {
	assert.Equal(t, "LESS", Less.String())
	assert.Equal(t, "EQUAL", Equal.String())
	assert.Equal(t, "GREATER", Greater.String())
}
