package boxscore

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInningsFromDecimal(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1.6667, "1.2"},
		{1.3333, "1.1"},
		{2.0, "2.0"},
		{0.3333, "0.1"},
		{4.99, "5.0"},
		{0, "0.0"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, InningsFromDecimal(tt.in).String(), "input %v", tt.in)
	}
	assert.InDelta(t, 1.2, InningsFromDecimal(1.6667).Float(), 1e-9)
}

func TestParseInnings(t *testing.T) {
	ip, err := ParseInnings("4.2")
	require.NoError(t, err)
	assert.Equal(t, 14, ip.Outs())
	assert.InDelta(t, 4.6667, ip.Thirds(), 1e-3)

	ip, err = ParseInnings("3")
	require.NoError(t, err)
	assert.Equal(t, 9, ip.Outs())

	for _, bad := range []string{"1.3", "1.7", "x", "-1", "1.25"} {
		_, err := ParseInnings(bad)
		assert.Error(t, err, bad)
	}
}

func TestInningsAdd(t *testing.T) {
	a, _ := ParseInnings("1.2")
	b, _ := ParseInnings("2.1")
	assert.Equal(t, "4.0", a.Add(b).String())
}

func TestInningsJSON(t *testing.T) {
	b, err := json.Marshal(InningsFromOuts(5))
	require.NoError(t, err)
	assert.Equal(t, "1.2", string(b))

	var ip Innings
	require.NoError(t, json.Unmarshal([]byte("3.1"), &ip))
	assert.Equal(t, 10, ip.Outs())
}
