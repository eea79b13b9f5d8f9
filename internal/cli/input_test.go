package cli

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSimpleText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "plain line", input: "hello\n", expected: "hello"},
		{name: "surrounding spaces trimmed", input: "  padded  \n", expected: "padded"},
		{name: "partial line at EOF", input: "no newline", expected: "no newline"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			got, err := GetSimpleText(bufio.NewReader(strings.NewReader(tt.input)), "Enter value", &out)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
			assert.Contains(t, out.String(), "Enter value")
		})
	}
}

func TestGetSecret(t *testing.T) {
	orig := readPassword
	t.Cleanup(func() { readPassword = orig })
	readPassword = func(fd int) ([]byte, error) {
		return []byte("s3cret\n"), nil
	}

	var out bytes.Buffer
	got, err := GetSecret("Enter token", &out)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", got)
	assert.Contains(t, out.String(), "Enter token")
}
