package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/Brownie44l1/leuko-api/internal/auth"
	"github.com/Brownie44l1/leuko-api/internal/pipeline"
	"github.com/Brownie44l1/leuko-api/internal/preprocess"
	pdfreport "github.com/Brownie44l1/leuko-api/internal/report"
	"github.com/Brownie44l1/leuko-api/internal/repositories/sql/report"
	"github.com/Brownie44l1/leuko-api/pkg/middleware"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type Analyzer interface {
	Analyze(ctx context.Context, filename string, raw []byte) (*pipeline.Result, error)
}

type PDFRenderer interface {
	Render(r *report.Report) ([]byte, error)
}

type Handler struct {
	analyzer       Analyzer
	reports        report.Repository
	pdf            PDFRenderer
	auth           auth.Authenticator
	maxUploadBytes int64
}

func NewHandler(analyzer Analyzer, reports report.Repository, pdf PDFRenderer,
	authenticator auth.Authenticator, maxUploadBytes int64) *Handler {
	return &Handler{
		analyzer:       analyzer,
		reports:        reports,
		pdf:            pdf,
		auth:           authenticator,
		maxUploadBytes: maxUploadBytes,
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (h *Handler) Predict(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}

	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read upload"})
		return
	}
	defer file.Close()
	raw, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read upload"})
		return
	}
	log.Info().Msgf("Received file: %s, size: %d bytes", header.Filename, len(raw))

	result, err := h.analyzer.Analyze(c.Request.Context(), header.Filename, raw)
	if errors.Is(err, preprocess.ErrDecode) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid image format"})
		return
	}
	if err != nil {
		log.Error().Err(err).Msgf("Prediction failed for %s", header.Filename)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Prediction failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) ListReports(c *gin.Context) {
	reports, err := h.reports.GetAll()
	if err != nil {
		log.Error().Err(err).Msg("Failed to list reports")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list reports"})
		return
	}
	if reports == nil {
		reports = []report.Report{}
	}
	c.JSON(http.StatusOK, reports)
}

func (h *Handler) GetReport(c *gin.Context) {
	r, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *Handler) DownloadReport(c *gin.Context) {
	r, ok := h.lookup(c)
	if !ok {
		return
	}
	doc, err := h.pdf.Render(r)
	if err != nil {
		log.Error().Err(err).Msgf("Failed to render report %d", r.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render report"})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+pdfreport.FileName(r.ID)+`"`)
	c.Data(http.StatusOK, "application/pdf", doc)
}

// lookup resolves the :id path parameter, writing the error response
// itself when it fails.
func (h *Handler) lookup(c *gin.Context) (*report.Report, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Report not found"})
		return nil, false
	}
	r, err := h.reports.GetByID(uint(id))
	if errors.Is(err, report.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Report not found"})
		return nil, false
	}
	if err != nil {
		log.Error().Err(err).Msgf("Failed to load report %d", id)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load report"})
		return nil, false
	}
	return r, true
}

func (h *Handler) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	err := h.auth.Register(&req)
	switch {
	case errors.Is(err, auth.ErrUserExists):
		c.JSON(http.StatusBadRequest, gin.H{"error": "User already exists!"})
	case errors.Is(err, auth.ErrMissingFields):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		log.Error().Err(err).Msg("Registration failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Registration failed"})
	default:
		c.JSON(http.StatusCreated, gin.H{"message": "User registered successfully"})
	}
}

func (h *Handler) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	resp, err := h.auth.Login(&req)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Login failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Logout(c *gin.Context) {
	if err := h.auth.Logout(middleware.BearerToken(c)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}
