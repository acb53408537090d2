package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNum(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"null", ""},
		{"98.50", "98.5"},
		{"2.400", "2.4"},
		{"1000", "1000"},
		{" 0.125 ", "0.125"},
		{"1e3", "1000"},
		{"100.000000000000000000001", "100.000000000000000000001"},
	}
	for _, tt := range tests {
		n, err := ParseNum(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, n.String(), tt.in)
	}

	_, err := ParseNum("abc")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestParseNum_RejectsOversizedInput(t *testing.T) {
	for _, in := range []string{
		"1e900000000",
		"1e200000000",
		"1e-900000000",
		"1e65",
		strings.Repeat("9", 65),
	} {
		n, err := ParseNum(in)
		assert.ErrorIs(t, err, ErrInvalidInput, in)
		assert.False(t, n.Valid(), in)
	}

	n, err := ParseNum("1e64")
	require.NoError(t, err)
	assert.Len(t, n.String(), 65)

	var v struct {
		Q Num `json:"quantity"`
	}
	err = json.Unmarshal([]byte(`{"quantity":1e900000000}`), &v)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestNum_JSON(t *testing.T) {
	var v struct {
		A Num `json:"a"`
		B Num `json:"b"`
		C Num `json:"c"`
		D Num `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":4.875,"b":"98.50","c":null}`), &v))
	assert.Equal(t, "4.875", v.A.String())
	assert.Equal(t, "98.5", v.B.String())
	assert.False(t, v.C.Valid())
	assert.False(t, v.D.Valid())

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"4.875","b":"98.5","c":null,"d":null}`, string(out))
}

func TestNum_Helpers(t *testing.T) {
	assert.True(t, MustNum("0.01").Positive())
	assert.False(t, MustNum("0").Positive())
	assert.False(t, Num{}.Positive())
	assert.Equal(t, "7", Num{}.Or(MustNum("7")).String())
	assert.Equal(t, "3", MustNum("3").Or(MustNum("7")).String())
	assert.InDelta(t, 98.375, MustNum("98.375").Float64(), 1e-9)
	assert.Equal(t, MustNum("2.4"), MustNum("2.400"))
}
