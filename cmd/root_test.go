package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/insider-scan/internal/model"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	// Collect subcommand names.
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	// Verify expected subcommands are registered.
	expected := []string{"scan", "latest", "congress", "resolve", "roster", "serve"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "insider-scan", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestScanCommand_Flags(t *testing.T) {
	for _, flagName := range []string{"from", "to", "type", "min-value", "source", "affiliated", "format", "out", "summary"} {
		flag := scanCmd.Flags().Lookup(flagName)
		assert.NotNil(t, flag, "scan should have --%s flag", flagName)
	}
	assert.Equal(t, "table", scanCmd.Flags().Lookup("format").DefValue)
}

func TestLatestCommand_Flags(t *testing.T) {
	flag := latestCmd.Flags().Lookup("count")
	require.NotNil(t, flag, "latest command should have --count flag")
	assert.Equal(t, "100", flag.DefValue)
}

func TestCongressCommand_Flags(t *testing.T) {
	for _, flagName := range []string{"chamber", "from", "to", "format"} {
		flag := congressCmd.Flags().Lookup(flagName)
		assert.NotNil(t, flag, "congress should have --%s flag", flagName)
	}
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestParseTradeType(t *testing.T) {
	for in, want := range map[string]model.TradeType{
		"buy":      model.TradeBuy,
		"sell":     model.TradeSell,
		"exercise": model.TradeExercise,
		"other":    model.TradeOther,
	} {
		got, err := parseTradeType(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := parseTradeType("gift")
	assert.Error(t, err)
}

func TestParseRange(t *testing.T) {
	dr, err := parseRange("2024-01-01", "2024-06-30")
	require.NoError(t, err)
	assert.Equal(t, 2024, dr.From.Year())
	assert.Equal(t, 6, int(dr.To.Month()))

	_, err = parseRange("01/01/2024", "")
	assert.Error(t, err)

	dr, err = parseRange("", "")
	require.NoError(t, err)
	assert.True(t, dr.From.IsZero())
	assert.True(t, dr.To.IsZero())
}
