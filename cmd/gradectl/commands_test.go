package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grade-sanchalaak/internal/bootstrap"
	"github.com/noah-isme/grade-sanchalaak/internal/config"
	"github.com/noah-isme/grade-sanchalaak/internal/evaluation"
	"github.com/noah-isme/grade-sanchalaak/pkg/ai"
)

func TestParseKeywordFileAcceptsJSONAndLines(t *testing.T) {
	set, err := parseKeywordFile(`["Normalization", "Primary Key", "normalization"]`)
	require.NoError(t, err)
	require.Equal(t, []string{"Normalization", "Primary Key"}, set.Items())

	set, err = parseKeywordFile("# reference terms\nIndexing\n\n  Transactions  \n")
	require.NoError(t, err)
	require.Equal(t, []string{"Indexing", "Transactions"}, set.Items())

	_, err = parseKeywordFile("\n# nothing\n")
	require.Error(t, err)
}

func TestParseSubmissionsReportsUnreadableFiles(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "alice.txt")
	require.NoError(t, os.WriteFile(good, []byte("Normalization removes redundancy."), 0o600))
	unsupported := filepath.Join(dir, "bob.pptx")
	require.NoError(t, os.WriteFile(unsupported, []byte("PK\x03\x04"), 0o600))
	missing := filepath.Join(dir, "carol.txt")

	pipeline, err := bootstrap.Assemble(config.Config{}, ai.Unconfigured(ai.ProviderOpenAI), zerolog.Nop())
	require.NoError(t, err)

	items, failures := parseSubmissions(pipeline, []string{good, unsupported, missing}, zerolog.Nop())
	require.Len(t, items, 1)
	require.Equal(t, uint(1), items[0].SubmissionID)
	require.Equal(t, "alice.txt", items[0].Label)
	require.Contains(t, items[0].Text, "Normalization")

	require.Len(t, failures, 2)
	require.Equal(t, uint(2), failures[0].SubmissionID)
	require.Error(t, failures[0].Err)
	require.Equal(t, "carol.txt", failures[1].Label)
}

func TestInArgumentOrderInterleavesUnreadableFiles(t *testing.T) {
	evaluated := []evaluation.Outcome{
		{SubmissionID: 3, Label: "carol.txt", Result: &evaluation.Result{TotalScore: 40, MaxScore: 50}},
		{SubmissionID: 1, Label: "alice.txt", Result: &evaluation.Result{TotalScore: 30, MaxScore: 50}},
	}
	unreadable := []evaluation.Outcome{{SubmissionID: 2, Label: "bob.pptx", Err: os.ErrNotExist}}

	rows := inArgumentOrder(3, evaluated, unreadable).Report().Rows
	require.Len(t, rows, 3)
	require.Equal(t, "alice.txt", rows[0].Label)
	require.Equal(t, "bob.pptx", rows[1].Label)
	require.Equal(t, evaluation.StatusFailed, rows[1].Status)
	require.Equal(t, "carol.txt", rows[2].Label)
}
