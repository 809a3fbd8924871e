// Package printing renders dispensation documents to HTML and PDF.
package printing

import (
	"context"
	"time"
)

// PaperSize is a supported output paper
type PaperSize string

const (
	PaperA4 PaperSize = "A4"
	PaperA5 PaperSize = "A5"
)

// Dimensions returns width and height in millimeters, portrait
func (p PaperSize) Dimensions() (float64, float64) {
	switch p {
	case PaperA5:
		return 148, 210
	default:
		return 210, 297
	}
}

// IsValid reports whether the paper size is supported
func (p PaperSize) IsValid() bool {
	return p == PaperA4 || p == PaperA5
}

// Margins in millimeters
type Margins struct {
	Top, Right, Bottom, Left float64
}

// DefaultMargins are used when a request sets none
func DefaultMargins() Margins {
	return Margins{Top: 12, Right: 10, Bottom: 12, Left: 10}
}

// RenderRequest contains the parameters for rendering HTML to PDF
type RenderRequest struct {
	HTML      string
	Title     string
	PaperSize PaperSize
	Landscape bool
	Margins   Margins
	// FooterHTML is printed on every page when set
	FooterHTML string
	// Timeout overrides the renderer default
	Timeout time.Duration
}

// RenderResult contains the output from PDF rendering
type RenderResult struct {
	PDFData        []byte
	RenderDuration time.Duration
}

// PDFRenderer converts HTML to PDF
type PDFRenderer interface {
	Render(ctx context.Context, req *RenderRequest) (*RenderResult, error)
	Close() error
}

// RenderError represents an error during rendering
type RenderError struct {
	Code    string
	Message string
	Cause   error
}

func (e *RenderError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}

// Error codes for rendering failures
const (
	ErrCodeRenderTimeout    = "RENDER_TIMEOUT"
	ErrCodeRenderFailed     = "RENDER_FAILED"
	ErrCodeInvalidHTML      = "INVALID_HTML"
	ErrCodeInvalidPaperSize = "INVALID_PAPER_SIZE"
	ErrCodeTemplate         = "TEMPLATE_ERROR"
	ErrCodeDisabled         = "PRINTING_DISABLED"
)

// NewRenderError creates a new RenderError
func NewRenderError(code, message string, cause error) *RenderError {
	return &RenderError{Code: code, Message: message, Cause: cause}
}

// DisabledRenderer is used when PDF output is switched off
type DisabledRenderer struct{}

// Render always fails with ErrCodeDisabled
func (DisabledRenderer) Render(ctx context.Context, req *RenderRequest) (*RenderResult, error) {
	return nil, NewRenderError(ErrCodeDisabled, "PDF rendering is disabled", nil)
}

// Close implements PDFRenderer
func (DisabledRenderer) Close() error { return nil }
