package handler_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grade-sanchalaak/internal/router"
)

func TestAssignmentReportContract(t *testing.T) {
	schemaPath, err := filepath.Abs(filepath.Join("testdata", "report.schema.json"))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile("file://" + schemaPath)
	require.NoError(t, err)

	g := setupGradingApp(t, fixedExtractor{keywords: []string{"Normalization", "Primary Key", "Foreign Key", "Indexing", "Transactions"}})
	id := createAssignment(t, g)

	resp, _ := g.do(t, httptest.NewRequest(http.MethodPost, fmt.Sprintf("%s/assignments/%d/keywords", router.GradingPrefix, id), nil), "teacher", 1)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = g.do(t, uploadRequest(t, router.GradingPrefix+"/submissions/batch", map[string]string{"assignment_id": strconv.Itoa(int(id))}, "files", map[string]string{
		"one.txt": "Normalization and indexing explained at length.",
		"two.txt": "This one gets rate limited by the provider.",
	}), "teacher", 1)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = g.do(t, httptest.NewRequest(http.MethodPost, fmt.Sprintf("%s/assignments/%d/evaluate", router.GradingPrefix, id), nil), "teacher", 1)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("%s/assignments/%d/report", router.GradingPrefix, id), nil)
	req.Header.Set("X-Test-Role", "teacher")
	resp, err = g.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var payload interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.NoError(t, schema.Validate(payload))
}
