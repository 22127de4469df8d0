package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	assert.NotNil(t, rootCmd)
	assert.Equal(t, "figprep", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRootCommandHelp(t *testing.T) {
	cmd := rootCmd

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)

	cmd.SetArgs([]string{"--help"})
	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "patent drawing")
	assert.Contains(t, output, "Available Commands:")
	assert.Contains(t, output, "Usage:")
}

func TestRootCommandSubcommands(t *testing.T) {
	subcommands := rootCmd.Commands()
	commandNames := make([]string, len(subcommands))
	for i, subcmd := range subcommands {
		commandNames[i] = subcmd.Name()
	}

	expectedCommands := []string{"prepare", "serve"}
	for _, expected := range expectedCommands {
		assert.Contains(t, commandNames, expected, "Expected subcommand '%s' not found", expected)
	}
}

func TestPrepareCommandFlags(t *testing.T) {
	for _, name := range []string{
		"page", "from", "to", "show-rotation", "output-dir",
		"dpi", "workers", "ocr-binary", "languages", "min-confidence", "crop-padding",
	} {
		assert.NotNil(t, prepareCmd.Flags().Lookup(name), "Expected flag '%s' not found", name)
	}
}

func TestServeCommandFlags(t *testing.T) {
	for _, name := range []string{
		"host", "port", "cors-origin", "max-upload-size", "timeout",
		"shutdown-timeout", "output-dir", "dpi", "workers",
		"rate-limit-enabled", "requests-per-minute", "max-data-per-day",
	} {
		assert.NotNil(t, serveCmd.Flags().Lookup(name), "Expected flag '%s' not found", name)
	}
}

func TestPrepareCommandRequiresArgs(t *testing.T) {
	err := prepareCmd.Args(prepareCmd, []string{})
	assert.Error(t, err)

	err = prepareCmd.Args(prepareCmd, []string{"drawing.pdf"})
	assert.NoError(t, err)
}
