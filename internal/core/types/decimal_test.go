package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQuantityString(t *testing.T) {
	cases := []struct {
		q    Quantity
		want string
	}{
		{NewQuantityFromInt(0), "0.0000"},
		{NewQuantityFromInt(12), "12.0000"},
		{NewQuantityFromInt64Scaled(25500), "2.5500"},
		{NewQuantityFromInt64Scaled(-1), "-0.0001"},
		{NewQuantityFromInt64Scaled(-123456), "-12.3456"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, tc.q.String())
	}
}

func TestQuantityUnmarshal(t *testing.T) {
	cases := []struct {
		in   string
		want Quantity
	}{
		{`12.5`, NewQuantityFromInt64Scaled(125000)},
		{`"12.5"`, NewQuantityFromInt64Scaled(125000)},
		{`-0.0001`, NewQuantityFromInt64Scaled(-1)},
		{`3`, NewQuantityFromInt(3)},
		{`0.12345`, NewQuantityFromInt64Scaled(1234)}, // extra digits truncated
		{`null`, 0},
	}
	for _, tc := range cases {
		var q Quantity
		require.NoError(t, json.Unmarshal([]byte(tc.in), &q), tc.in)
		require.Equal(t, tc.want, q, tc.in)
	}

	var q Quantity
	require.Error(t, json.Unmarshal([]byte(`"abc"`), &q))
}

func TestQuantityUnmarshalRejectsOverflow(t *testing.T) {
	// Magnitudes whose scaled value exceeds int64 must error out, not
	// wrap into a wrong quantity.
	for _, in := range []string{
		`922337203685478`,     // scaled value past math.MaxInt64
		`99999999999999999`,   // well past
		`-922337203685478.01`, // negative side wraps the same way
	} {
		var q Quantity
		require.Error(t, json.Unmarshal([]byte(in), &q), in)
	}

	var q Quantity
	require.NoError(t, json.Unmarshal([]byte(`922337203685477.5807`), &q))
	require.Equal(t, NewQuantityFromInt64Scaled(9223372036854775807), q)
}

func TestQuantityJSONRoundTrip(t *testing.T) {
	q := NewQuantityFromInt64Scaled(987654321)
	data, err := json.Marshal(q)
	require.NoError(t, err)
	require.Equal(t, "98765.4321", string(data))

	var back Quantity
	require.NoError(t, json.Unmarshal(data, &back))
	require.Equal(t, q, back)
}

func TestRoundMoney(t *testing.T) {
	require.Equal(t, "1066.67", RoundMoney(MustMoney("1066.666666")).StringFixed(2))
	require.Equal(t, "0.13", RoundMoney(MustMoney("0.125")).StringFixed(2))
	require.Equal(t, "-2.50", RoundMoney(MustMoney("-2.499999")).StringFixed(2))
}

func TestQuantityDecimal(t *testing.T) {
	q := NewQuantityFromInt64Scaled(15000) // 1.5
	require.True(t, q.Decimal().Equal(MustMoney("1.5")))
	require.True(t, NewQuantityFromInt(0).Decimal().IsZero())
}
