package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"

	"github.com/c0lormem/apltestgen/internal/batch"
	"github.com/c0lormem/apltestgen/internal/config"
	"github.com/c0lormem/apltestgen/internal/handlers"
	"github.com/c0lormem/apltestgen/internal/models"
)

// HandlersSuite exercises the HTTP surface end to end through httptest.
type HandlersSuite struct {
	suite.Suite
	server *gin.Engine
	client *http.Client
	ts     *httptest.Server
}

func (s *HandlersSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	s.server = gin.New()
	registry := batch.NewRegistry(config.Config{BatchMaxJobs: 50, BatchMaxAgeSeconds: 3600}, nil)
	handlers.RegisterRoutes(s.server, registry)
	s.ts = httptest.NewServer(s.server)
	s.client = s.ts.Client()
}

func (s *HandlersSuite) TearDownSuite() {
	s.ts.Close()
}

func (s *HandlersSuite) postJSON(path string, body any) *http.Response {
	data, err := json.Marshal(body)
	s.Require().NoError(err)
	resp, err := s.client.Post(s.ts.URL+path, "application/json", bytes.NewReader(data))
	s.Require().NoError(err)
	return resp
}

func (s *HandlersSuite) TestPreviewReturnsPNG() {
	resp := s.postJSON("/api/v1/preview", models.PreviewRequest{Width: 64, Height: 64, APLPercent: 25, Shape: "rectangle"})
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("image/png", resp.Header.Get("Content-Type"))
}

func (s *HandlersSuite) TestPreviewRejectsOversizedDimensions() {
	resp := s.postJSON("/api/v1/preview", models.PreviewRequest{Width: 5000, Height: 64, APLPercent: 25})
	defer resp.Body.Close()
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *HandlersSuite) TestGenerateWritesFileAndReportsSize() {
	dir := s.T().TempDir()
	resp := s.postJSON("/api/v1/generate", models.GenerateRequest{
		Width: 32, Height: 32, APLPercent: 50, OutputDirectory: dir,
	})
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	var out models.GenerateResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&out))
	s.NotEmpty(out.OutputPath)
	s.Greater(out.FileSize, int64(0))
}

func (s *HandlersSuite) TestGenerateRejectsInvalidAPLPercent() {
	resp := s.postJSON("/api/v1/generate", models.GenerateRequest{Width: 32, Height: 32, APLPercent: 0})
	defer resp.Body.Close()
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *HandlersSuite) TestBatchLifecycle() {
	dir := s.T().TempDir()
	resp := s.postJSON("/api/v1/batch", models.BatchRequest{
		Width: 32, Height: 32, APLRangeStart: 10, APLRangeEnd: 30, APLStep: 10, OutputDirectory: dir,
	})
	defer resp.Body.Close()
	s.Equal(http.StatusAccepted, resp.StatusCode)

	var created models.BatchResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&created))
	s.NotEmpty(created.BatchID)

	var final models.BatchStatus
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		statusResp, err := s.client.Get(s.ts.URL + "/api/v1/batch/" + created.BatchID + "/status")
		s.Require().NoError(err)
		s.Require().NoError(json.NewDecoder(statusResp.Body).Decode(&final))
		statusResp.Body.Close()
		if final.Status == models.StatusCompleted || final.Status == models.StatusFailed {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	s.Equal(models.StatusCompleted, final.Status)
	s.Equal(3, final.Total)
}

func (s *HandlersSuite) TestBatchCancelUnknownIDReturnsNotFound() {
	resp, err := s.client.Post(s.ts.URL+"/api/v1/batch/does-not-exist/cancel", "application/json", nil)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *HandlersSuite) TestBatchStatusUnknownIDReturnsNotFound() {
	resp, err := s.client.Get(s.ts.URL + "/api/v1/batch/does-not-exist/status")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func TestHandlersSuite(t *testing.T) {
	suite.Run(t, new(HandlersSuite))
}
