package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/a3tai/invoice-extractor/internal/batch"
	"github.com/a3tai/invoice-extractor/internal/export"
	"github.com/a3tai/invoice-extractor/internal/invoice"
	"github.com/a3tai/invoice-extractor/internal/service"
)

const (
	// uploadField is the multipart field carrying the invoices
	uploadField = "files"

	headerRows     = "X-Extracted-Rows"
	headerWarnings = "X-Extract-Warning"

	// maxUploadFiles bounds one request; with the per-file limit it also
	// caps the request body.
	maxUploadFiles = 20

	// multipartOverhead covers part headers, boundaries and form fields.
	multipartOverhead = 1 << 20
)

// errUpload is an upload the form should have rejected; the status code
// tells the client which rule was broken.
type errUpload struct {
	status  int
	message string
}

func (e *errUpload) Error() string { return e.message }

func (s *Server) index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{
		"MaxMB":   s.service.MaxFileSize() / (1024 * 1024),
		"Columns": invoice.Headers(),
		"OCR":     s.service.OCREngine(),
	})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "UP", "ocr": s.service.OCREngine()})
}

// extract runs the batch and answers with the spreadsheet attachment.
func (s *Server) extract(c *gin.Context) {
	format, err := export.ParseFormat(c.DefaultPostForm("format", c.Query("format")))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, ok := s.run(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, result.Records); err != nil {
		s.logger.Error("export failed", "format", format, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build the spreadsheet"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.Filename()))
	c.Header(headerRows, strconv.Itoa(len(result.Records)))
	for _, w := range result.Warnings {
		c.Writer.Header().Add(headerWarnings, url.PathEscape(w.String()))
	}
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}

// apiExtract runs the batch and answers with the records as JSON.
func (s *Server) apiExtract(c *gin.Context) {
	result, ok := s.run(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"records":  result.Records,
		"warnings": warningsJSON(result.Warnings),
		"rows":     len(result.Records),
	})
}

// run validates the upload and extracts it. On failure the response has
// already been written.
func (s *Server) run(c *gin.Context) (*service.ExtractResult, bool) {
	sources, err := s.uploadSources(c)
	if err != nil {
		var uerr *errUpload
		if errors.As(err, &uerr) {
			c.JSON(uerr.status, gin.H{"error": uerr.message})
		} else {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return nil, false
	}

	result, err := s.service.Extract(c.Request.Context(), sources)
	if err != nil {
		s.logger.Warn("extraction interrupted", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return nil, false
	}

	for _, w := range result.Warnings {
		s.logger.Warn(w.String())
	}

	if len(result.Records) == 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":    "No data extracted from any file.",
			"warnings": warningsJSON(result.Warnings),
		})
		return nil, false
	}

	s.logger.Info("extraction done", "rows", len(result.Records), "files", result.Files)
	return result, true
}

// uploadSources checks every uploaded part before anything is extracted.
func (s *Server) uploadSources(c *gin.Context) ([]batch.Source, error) {
	limit := s.service.MaxFileSize()
	total := limit*maxUploadFiles + multipartOverhead
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, total)

	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, &errUpload{
				http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload is larger than %d MB in total", total/(1024*1024)),
			}
		}
		return nil, fmt.Errorf("expected a multipart upload: %w", err)
	}

	files := form.File[uploadField]
	if len(files) == 0 {
		return nil, &errUpload{http.StatusBadRequest, "no files uploaded"}
	}
	if len(files) > maxUploadFiles {
		return nil, &errUpload{
			http.StatusRequestEntityTooLarge,
			fmt.Sprintf("at most %d files per upload", maxUploadFiles),
		}
	}

	sources := make([]batch.Source, 0, len(files))
	for _, fh := range files {
		name := filepath.Base(fh.Filename)
		if !strings.EqualFold(filepath.Ext(name), ".pdf") {
			return nil, &errUpload{http.StatusUnsupportedMediaType, fmt.Sprintf("%s is not a PDF file", name)}
		}
		if fh.Size > limit {
			return nil, &errUpload{
				http.StatusRequestEntityTooLarge,
				fmt.Sprintf("%s is larger than %d MB", name, limit/(1024*1024)),
			}
		}
		sources = append(sources, partSource(name, fh))
	}

	return sources, nil
}

// partSource reads an uploaded part when the processor reaches it.
func partSource(name string, fh *multipart.FileHeader) batch.Source {
	return batch.Source{
		Name: name,
		Load: func(context.Context) ([]byte, error) {
			f, err := fh.Open()
			if err != nil {
				return nil, fmt.Errorf("cannot open upload: %w", err)
			}
			defer f.Close()
			return io.ReadAll(f)
		},
	}
}

type warningJSON struct {
	File    string `json:"file"`
	Message string `json:"message"`
	Text    string `json:"text"`
}

func warningsJSON(warnings []batch.Warning) []warningJSON {
	out := make([]warningJSON, 0, len(warnings))
	for _, w := range warnings {
		out = append(out, warningJSON{File: w.File, Message: w.Message, Text: w.String()})
	}
	return out
}
