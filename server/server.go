package server

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"harmonizer/flows"
	"harmonizer/harmonize"
	"harmonizer/importer"
)

// Orchestrator запуск гармонизации как подменяемая в тестах способность
type Orchestrator interface {
	Run(ctx context.Context, records []flows.RawFlowRecord) *harmonize.RunResult
}

// Server тонкая HTTP-обертка движка: загрузка таблицы запускает прогон,
// статус и сопоставления читаются по идентификатору прогона
type Server struct {
	engine       *gin.Engine
	orchestrator Orchestrator
	importer     *importer.Importer
	registry     *Registry
	logger       *slog.Logger
}

// ErrorResponse структура ошибки
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

// NewServer собирает сервер и маршруты
func NewServer(orchestrator Orchestrator, imp *importer.Importer) *Server {
	s := &Server{
		engine:       gin.New(),
		orchestrator: orchestrator,
		importer:     imp,
		registry:     NewRegistry(),
		logger:       slog.Default().With("component", "server"),
	}

	s.engine.Use(gin.Recovery())
	s.engine.Use(requestIDMiddleware())

	api := s.engine.Group("/api")
	api.GET("/health", s.handleHealth)
	api.POST("/runs", s.handleCreateRun)
	api.GET("/runs", s.handleListRuns)
	api.GET("/runs/:id", s.handleRunStatus)
	api.GET("/runs/:id/mappings", s.handleRunMappings)
	api.DELETE("/runs/:id", s.handleCancelRun)

	return s
}

// Handler возвращает корневой http.Handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe запускает сервер на указанном порту
func (s *Server) ListenAndServe(port string) error {
	s.logger.Info("HTTP server starting", "port", port)
	return s.engine.Run(":" + port)
}

// requestIDMiddleware добавляет request ID к каждому запросу
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Set("request_id", reqID)
		c.Header("X-Request-ID", reqID)
		c.Next()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleCreateRun принимает XLSX, импортирует записи и запускает прогон
// в фоне; ответ сразу содержит идентификатор прогона
func (s *Server) handleCreateRun(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: true, Message: "multipart field 'file' is required"})
		return
	}

	tmpPath := filepath.Join(os.TempDir(), uuid.NewString()+".xlsx")
	if err := c.SaveUploadedFile(fileHeader, tmpPath); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: true, Message: "failed to store upload"})
		return
	}
	defer os.Remove(tmpPath)

	imported, err := s.importer.ImportFile(tmpPath)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: true, Message: err.Error()})
		return
	}
	if len(imported.Records) == 0 {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: true, Message: "no inventory records in sheet"})
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	run := s.registry.Create(fileHeader.Filename, len(imported.Records), cancel)

	s.logger.Info("Run accepted", "run_id", run.ID, "filename", fileHeader.Filename, "records", len(imported.Records))

	go func() {
		defer cancel()
		result := s.orchestrator.Run(ctx, imported.Records)
		s.registry.Complete(run.ID, result)
		s.logger.Info("Run finished", "run_id", run.ID)
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"run_id":  run.ID,
		"records": run.Records,
		"status":  run.Status,
	})
}

func (s *Server) handleListRuns(c *gin.Context) {
	runs := s.registry.List()
	c.JSON(http.StatusOK, gin.H{"runs": runs, "total": len(runs)})
}

func (s *Server) handleRunStatus(c *gin.Context) {
	run, ok := s.registry.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: true, Message: "run not found"})
		return
	}
	payload := gin.H{
		"id":           run.ID,
		"status":       run.Status,
		"filename":     run.Filename,
		"records":      run.Records,
		"submitted_at": run.SubmittedAt,
	}
	if run.FinishedAt != nil {
		payload["finished_at"] = run.FinishedAt
	}
	if run.Error != "" {
		payload["error"] = run.Error
	}
	if run.Result != nil {
		payload["stats"] = run.Result.Stats()
	}
	c.JSON(http.StatusOK, payload)
}

func (s *Server) handleRunMappings(c *gin.Context) {
	run, ok := s.registry.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: true, Message: "run not found"})
		return
	}
	if run.Result == nil {
		c.JSON(http.StatusConflict, ErrorResponse{Error: true, Message: "run not finished yet"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"run_id":      run.ID,
		"mappings":    run.Result.Mappings,
		"proxy_rules": run.Result.ProxyRules,
		"total":       len(run.Result.Mappings),
	})
}

func (s *Server) handleCancelRun(c *gin.Context) {
	if !s.registry.Cancel(c.Param("id")) {
		c.JSON(http.StatusConflict, ErrorResponse{Error: true, Message: "run not found or not running"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": StatusCancelled})
}
