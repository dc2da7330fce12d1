package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"harmonizer/flows"
	"harmonizer/harmonize"
	"harmonizer/importer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubOrchestrator разрешает каждую запись в фиксированную каноническую
type stubOrchestrator struct{}

func (stubOrchestrator) Run(ctx context.Context, records []flows.RawFlowRecord) *harmonize.RunResult {
	result := &harmonize.RunResult{RunID: "inner", StartedAt: time.Now().UTC()}
	for _, r := range records {
		result.Mappings = append(result.Mappings, harmonize.HarmonizedMapping{
			RecordID:   r.ID,
			RecordName: r.Name,
			EntryID:    "e1",
			Provenance: harmonize.ProvenanceExact,
		})
	}
	result.FinishedAt = time.Now().UTC()
	return result
}

// blockingOrchestrator не завершается до отмены контекста
type blockingOrchestrator struct{}

func (blockingOrchestrator) Run(ctx context.Context, records []flows.RawFlowRecord) *harmonize.RunResult {
	<-ctx.Done()
	return &harmonize.RunResult{}
}

func testServer(o Orchestrator) *Server {
	return NewServer(o, importer.NewImporter(importer.Options{Sheet: "LCI"}))
}

func buildWorkbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	_, err := f.NewSheet("LCI")
	require.NoError(t, err)

	rows := [][]interface{}{
		{"", "FLOW NAME", "QUANTITY", "UNIT", "LOCATION"},
		{"INPUTS", "diesel", 1.0, "kg", "DE"},
		{"", "electricity", 2.0, "kWh", "DE"},
	}
	for i, row := range rows {
		for j, v := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue("LCI", cell, v))
		}
	}
	data, err := f.WriteToBuffer()
	require.NoError(t, err)
	return data.Bytes()
}

func uploadRequest(t *testing.T, workbook []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "in.xlsx")
	require.NoError(t, err)
	_, err = part.Write(workbook)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/runs", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestHealth(t *testing.T) {
	s := testServer(stubOrchestrator{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestCreateRunAndFetchMappings(t *testing.T) {
	s := testServer(stubOrchestrator{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, uploadRequest(t, buildWorkbook(t)))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var created struct {
		RunID   string `json:"run_id"`
		Records int    `json:"records"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.RunID)
	require.Equal(t, 2, created.Records)

	require.Eventually(t, func() bool {
		run, ok := s.registry.Get(created.RunID)
		return ok && run.Status == StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/"+created.RunID+"/mappings", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var mappings struct {
		Total    int                           `json:"total"`
		Mappings []harmonize.HarmonizedMapping `json:"mappings"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mappings))
	require.Equal(t, 2, mappings.Total)
	require.Equal(t, "diesel", mappings.Mappings[0].RecordName)
}

func TestRunStatusNotFound(t *testing.T) {
	s := testServer(stubOrchestrator{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/nope", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMappingsBeforeFinishConflict(t *testing.T) {
	s := testServer(blockingOrchestrator{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, uploadRequest(t, buildWorkbook(t)))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var created struct {
		RunID string `json:"run_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/"+created.RunID+"/mappings", nil))
	require.Equal(t, http.StatusConflict, rec.Code)

	// отмена разблокирует воркер
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/runs/"+created.RunID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	require.Eventually(t, func() bool {
		run, ok := s.registry.Get(created.RunID)
		return ok && run.Status == StatusCancelled && run.FinishedAt != nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCreateRunRejectsMissingFile(t *testing.T) {
	s := testServer(stubOrchestrator{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/runs", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateRunRejectsBadWorkbook(t *testing.T) {
	s := testServer(stubOrchestrator{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, uploadRequest(t, []byte("not an xlsx")))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestListRuns(t *testing.T) {
	s := testServer(stubOrchestrator{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, uploadRequest(t, buildWorkbook(t)))
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var listed struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Equal(t, 1, listed.Total)
}
