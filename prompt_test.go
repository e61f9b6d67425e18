package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// promptCmd builds a throwaway command with scripted stdin and captured
// stderr for prompt tests.
func promptCmd(input string) (*cobra.Command, *bytes.Buffer) {
	cmd := &cobra.Command{}
	errBuf := &bytes.Buffer{}

	cmd.SetIn(strings.NewReader(input))
	cmd.SetErr(errBuf)
	cmd.SetOut(&bytes.Buffer{})

	return cmd, errBuf
}

func TestPromptLineTrimsWhitespace(t *testing.T) {
	cmd, errBuf := promptCmd("  user@example.com  \n")

	line, err := promptLine(cmd, "Email: ")
	require.NoError(t, err)

	assert.Equal(t, "user@example.com", line)
	assert.Equal(t, "Email: ", errBuf.String())
}

func TestPromptLineWithoutTrailingNewline(t *testing.T) {
	cmd, _ := promptCmd("secret")

	line, err := promptLine(cmd, "Password: ")
	require.NoError(t, err)
	assert.Equal(t, "secret", line)
}

func TestPromptLineEmptyInput(t *testing.T) {
	cmd, _ := promptCmd("")

	_, err := promptLine(cmd, "Email: ")
	assert.Error(t, err)
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"lowercase y", "y\n", true},
		{"yes", "yes\n", true},
		{"uppercase", "YES\n", true},
		{"n", "n\n", false},
		{"empty line defaults to no", "\n", false},
		{"garbage", "sure\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, _ := promptCmd(tt.input)

			got, err := confirm(cmd, "Delete? [y/N] ")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFirstOf(t *testing.T) {
	assert.Equal(t, "a", firstOf("a", "b"))
	assert.Equal(t, "b", firstOf("", "b"))
	assert.Equal(t, "", firstOf("", ""))
}
