package printing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const defaultChromeTimeout = 30 * time.Second

// ChromedpConfig contains configuration for the chromedp renderer
type ChromedpConfig struct {
	DefaultTimeout time.Duration
	// RemoteURL points at a running Chrome instance; empty launches one locally
	RemoteURL string
	// ExecPath overrides the Chrome binary when launching locally
	ExecPath  string
	NoSandbox bool
	Logger    *zap.Logger
}

// ChromedpRenderer renders HTML to PDF using the Chrome DevTools Protocol
type ChromedpRenderer struct {
	config      ChromedpConfig
	logger      *zap.Logger
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

// NewChromedpRenderer creates the renderer. Chrome itself is started lazily
// by the first Render call.
func NewChromedpRenderer(cfg ChromedpConfig) *ChromedpRenderer {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = defaultChromeTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &ChromedpRenderer{config: cfg, logger: logger.Named("chromedp")}
	if cfg.RemoteURL != "" {
		r.allocCtx, r.allocCancel = chromedp.NewRemoteAllocator(context.Background(), cfg.RemoteURL)
		return r
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("font-render-hinting", "none"),
	)
	if cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	r.allocCtx, r.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	return r
}

// Render converts HTML content to PDF
func (r *ChromedpRenderer) Render(ctx context.Context, req *RenderRequest) (*RenderResult, error) {
	if req == nil || strings.TrimSpace(req.HTML) == "" {
		return nil, NewRenderError(ErrCodeInvalidHTML, "HTML content is empty", nil)
	}
	if req.PaperSize == "" {
		req.PaperSize = PaperA4
	}
	if !req.PaperSize.IsValid() {
		return nil, NewRenderError(ErrCodeInvalidPaperSize, "invalid paper size: "+string(req.PaperSize), nil)
	}

	start := time.Now()
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = r.config.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	browserCtx, browserCancel := chromedp.NewContext(r.allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			r.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)
	defer browserCancel()

	// Tie the browser tab to the caller's deadline
	stop := context.AfterFunc(ctx, browserCancel)
	defer stop()

	doc := wrapDocument(req)
	params := buildPrintParams(req)

	var pdf []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, doc).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := params.action().Do(ctx)
			if err != nil {
				return err
			}
			pdf = data
			return nil
		}),
	)
	if err != nil {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return nil, NewRenderError(ErrCodeRenderTimeout, fmt.Sprintf("PDF rendering timed out after %v", timeout), err)
		case errors.Is(ctx.Err(), context.Canceled):
			return nil, NewRenderError(ErrCodeRenderTimeout, "PDF rendering was cancelled", err)
		}
		r.logger.Error("chromedp rendering failed", zap.Error(err))
		return nil, NewRenderError(ErrCodeRenderFailed, "chromedp execution failed", err)
	}
	if len(pdf) == 0 {
		return nil, NewRenderError(ErrCodeRenderFailed, "generated PDF is empty", nil)
	}

	elapsed := time.Since(start)
	r.logger.Info("PDF rendered", zap.Int("bytes", len(pdf)), zap.Duration("duration", elapsed))
	return &RenderResult{PDFData: pdf, RenderDuration: elapsed}, nil
}

// Close releases the browser allocator
func (r *ChromedpRenderer) Close() error {
	if r.allocCancel != nil {
		r.allocCancel()
	}
	return nil
}

type printParams struct {
	paperWidth   float64
	paperHeight  float64
	marginTop    float64
	marginRight  float64
	marginBottom float64
	marginLeft   float64
	landscape    bool
	footer       string
}

func (p printParams) action() *page.PrintToPDFParams {
	a := page.PrintToPDF().
		WithPrintBackground(true).
		WithPaperWidth(p.paperWidth).
		WithPaperHeight(p.paperHeight).
		WithMarginTop(p.marginTop).
		WithMarginRight(p.marginRight).
		WithMarginBottom(p.marginBottom).
		WithMarginLeft(p.marginLeft).
		WithLandscape(p.landscape)
	if p.footer != "" {
		a = a.WithDisplayHeaderFooter(true).
			WithHeaderTemplate("<span></span>").
			WithFooterTemplate(p.footer)
	}
	return a
}

func buildPrintParams(req *RenderRequest) printParams {
	margins := req.Margins
	if margins == (Margins{}) {
		margins = DefaultMargins()
	}
	w, h := req.PaperSize.Dimensions()

	p := printParams{
		paperWidth:   mmToInches(w),
		paperHeight:  mmToInches(h),
		marginTop:    mmToInches(margins.Top),
		marginRight:  mmToInches(margins.Right),
		marginBottom: mmToInches(margins.Bottom),
		marginLeft:   mmToInches(margins.Left),
		landscape:    req.Landscape,
		footer:       req.FooterHTML,
	}
	if p.footer != "" && p.marginBottom < mmToInches(10) {
		p.marginBottom = mmToInches(10)
	}
	return p
}

// wrapDocument completes an HTML fragment into a full document
func wrapDocument(req *RenderRequest) string {
	lower := strings.ToLower(req.HTML)
	if strings.Contains(lower, "<!doctype") || strings.Contains(lower, "<html") {
		return req.HTML
	}

	var buf bytes.Buffer
	buf.WriteString(`<!DOCTYPE html><html><head><meta charset="UTF-8">`)
	if req.Title != "" {
		buf.WriteString("<title>" + html.EscapeString(req.Title) + "</title>")
	}
	buf.WriteString("</head><body>")
	buf.WriteString(req.HTML)
	buf.WriteString("</body></html>")
	return buf.String()
}

func mmToInches(mm float64) float64 {
	return mm / 25.4
}

var _ PDFRenderer = (*ChromedpRenderer)(nil)
