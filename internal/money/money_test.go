package money

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMulAndSum(t *testing.T) {
	price := MustParse("100")
	require.Equal(t, "300.00", price.Mul(3).String())
	require.Equal(t, "12.50", Sum(MustParse("10.25"), MustParse("2.25")).String())
}

func TestParseRounds(t *testing.T) {
	a, err := Parse("19.999")
	require.NoError(t, err)
	require.Equal(t, "20.00", a.String())

	_, err = Parse("abc")
	require.Error(t, err)
}

func TestJSONAcceptsStringAndNumber(t *testing.T) {
	var payload struct {
		A Amount `json:"a"`
		B Amount `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"150","b":42.5}`), &payload))
	require.Equal(t, "150.00", payload.A.String())
	require.Equal(t, "42.50", payload.B.String())

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	require.JSONEq(t, `{"a":"150.00","b":"42.50"}`, string(out))
}

func TestScan(t *testing.T) {
	var a Amount
	require.NoError(t, a.Scan([]byte("7.10")))
	require.Equal(t, "7.10", a.String())
	require.NoError(t, a.Scan(float64(3)))
	require.Equal(t, "3.00", a.String())
	require.NoError(t, a.Scan(nil))
	require.True(t, a.IsZero())
	require.Error(t, a.Scan(true))
}
