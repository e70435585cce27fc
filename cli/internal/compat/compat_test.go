package compat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck(t *testing.T) {
	tests := []struct {
		provider string
		version  string
		warnings int
	}{
		{"mysql", "8.0.36", 0},
		{"mysql", "8.0.19", 0},
		{"mysql", "5.7.44", 1},
		{"mysql", "5.6.40", 2},
		{"mysql", "10.11.6-MariaDB", 0},
		{"postgres", "16.2 (Debian 16.2-1.pgdg120+2)", 0},
		{"postgres", "9.4.26", 1},
		{"sqlite", "3.45.1", 0},
		{"sqlite", "3.22.0", 1},
	}

	for _, tt := range tests {
		t.Run(tt.provider+" "+tt.version, func(t *testing.T) {
			warnings, err := Check(tt.provider, tt.version)
			require.NoError(t, err)
			assert.Len(t, warnings, tt.warnings)
		})
	}
}

func TestCheckWarnings(t *testing.T) {
	warnings, err := Check("mysql", "5.6.40")
	require.NoError(t, err)
	require.Len(t, warnings, 2)
	assert.Contains(t, warnings[0], "older than the minimum supported 5.7.0")
	assert.Contains(t, warnings[1], "VALUES()")
}

func TestCheckErrors(t *testing.T) {
	_, err := Check("oracle", "19.0")
	assert.Error(t, err)

	_, err = Check("postgres", "garbage")
	assert.Error(t, err)

	_, err = Check("sqlite", "")
	assert.Error(t, err)
}
