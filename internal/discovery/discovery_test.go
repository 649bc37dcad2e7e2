package discovery

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShellQuote(t *testing.T) {
	require.Equal(t, "''", shellQuote(""))
	require.Equal(t, "'/var/log'", shellQuote("/var/log"))
	require.Equal(t, `'it'"'"'s'`, shellQuote("it's"))
}

func TestLooksLikeLogFile(t *testing.T) {
	require.True(t, looksLikeLogFile("/var/log", "syslog"))
	require.True(t, looksLikeLogFile("/opt/app", "app.log"))
	require.True(t, looksLikeLogFile("/var/logs/app", "current"))
	require.False(t, looksLikeLogFile("/opt/app", "binary"))
}
