package utils

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		raw  string
		want int64
		ok   bool
	}{
		{"100", 100, true},
		{" 7 ", 7, true},
		{"9007199254740993", 9007199254740993, true},
		{"0", 0, false},
		{"-5", 0, false},
		{"10.5", 0, false},
		{"10.0", 0, false},
		{"1e3", 0, false},
		{`"100"`, 0, false},
		{"null", 0, false},
		{"", 0, false},
		{"[1]", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParseAmount(json.RawMessage(tt.raw))
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestGenerateID_Unique(t *testing.T) {
	require.NotEqual(t, GenerateID(), GenerateID())
	require.Len(t, GenerateID(), 36)
}
