package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNewWritesToRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "grade.log")

	logger, closer := New(Options{Level: "debug", File: path, Service: "grade-test"})
	logger.Debug().Str("component", "test").Msg("hello file")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"message":"hello file"`)
	require.Contains(t, string(data), `"service":"grade-test"`)
}

func TestNewFallsBackToInfo(t *testing.T) {
	logger, closer := New(Options{Level: "loud"})
	defer closer.Close()

	require.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}
