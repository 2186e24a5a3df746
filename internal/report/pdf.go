// Package report exports persisted analyses as PDF documents.
package report

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/Brownie44l1/leuko-api/internal/repositories/sql/report"
	"github.com/Brownie44l1/leuko-api/pkg/cache"
	"github.com/go-pdf/fpdf"
	"github.com/rs/zerolog/log"
)

const timeLayout = "2006-01-02 15:04:05 MST"

// Render builds the case report for r.
func Render(r *report.Report) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("report is nil")
	}
	pdf := fpdf.New("P", "mm", "A4", "")
	title := fmt.Sprintf("DeepLeuko Case Report #%d", r.ID)
	pdf.SetTitle(title, false)
	pdf.SetCreationDate(r.CreatedAt)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 12, title, "", 1, "C", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "", 12)
	lines := []string{
		"Diagnosis: " + r.Prediction,
		"Confidence: " + strconv.FormatFloat(r.Confidence, 'f', -1, 64) + "%",
		"File: " + r.Filename,
	}
	if !r.CreatedAt.IsZero() {
		lines = append(lines, "Created: "+r.CreatedAt.UTC().Format(timeLayout))
	}
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	for _, line := range lines {
		pdf.CellFormat(0, 8, tr(line), "", 1, "L", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render report %d: %w", r.ID, err)
	}
	return buf.Bytes(), nil
}

// FileName is the attachment name for report id.
func FileName(id uint) string {
	return fmt.Sprintf("report_%d.pdf", id)
}

// Renderer caches rendered PDFs by report id. Reports are immutable once
// written, so a cached document never goes stale.
type Renderer struct {
	cache *cache.Cache
	ttl   time.Duration
}

func NewRenderer(c *cache.Cache, ttl time.Duration) *Renderer {
	return &Renderer{cache: c, ttl: ttl}
}

func (rd *Renderer) Render(r *report.Report) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("report is nil")
	}
	if rd.cache == nil {
		return Render(r)
	}
	key := []byte("pdf:" + strconv.FormatUint(uint64(r.ID), 10))
	if doc, err := rd.cache.Get(key); err == nil {
		return doc, nil
	}
	doc, err := Render(r)
	if err != nil {
		return nil, err
	}
	if err := rd.cache.Set(key, doc, rd.ttl); err != nil {
		log.Warn().Err(err).Msgf("Failed to cache report %d", r.ID)
	}
	return doc, nil
}
