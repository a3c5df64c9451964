// Package render turns audit reports into HTML pages and PDFs.
package render

import (
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// PDFRenderer turns a report document into PDF bytes.
type PDFRenderer interface {
	Render(ctx context.Context, doc Document) ([]byte, error)
}

// Document is what gets rendered. Markdown wins over HTML when both are set.
type Document struct {
	Title       string
	Company     string
	Score       *float64
	OverallRisk string
	GeneratedAt time.Time
	Markdown    string
	HTML        string
}

type ChromiumRenderer struct {
	chromePath string
	timeout    time.Duration
}

func NewChromiumRenderer(chromePath string) *ChromiumRenderer {
	if chromePath == "" {
		chromePath = detectChromePath()
	}
	return &ChromiumRenderer{chromePath: chromePath, timeout: 30 * time.Second}
}

func (r *ChromiumRenderer) Render(ctx context.Context, doc Document) ([]byte, error) {
	htmlDoc, err := BuildHTML(doc)
	if err != nil {
		return nil, err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
	}
	if r.chromePath != "" {
		opts = append(opts, chromedp.ExecPath(r.chromePath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(timeoutCtx, append(chromedp.DefaultExecAllocatorOptions[:], opts...)...)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	var pdf []byte
	dataURL := "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(htmlDoc))
	if err := chromedp.Run(taskCtx,
		chromedp.Navigate(dataURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			footer := `<div style="width:100%;text-align:center;font-size:9px;color:#666;">` +
				`Page <span class="pageNumber"></span> of <span class="totalPages"></span></div>`
			out, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithDisplayHeaderFooter(true).
				WithHeaderTemplate(`<div></div>`).
				WithFooterTemplate(footer).
				WithPaperWidth(8.5).
				WithPaperHeight(11).
				WithMarginTop(0.5).
				WithMarginBottom(0.75).
				WithMarginLeft(0.5).
				WithMarginRight(0.5).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = out
			return nil
		}),
	); err != nil {
		return nil, fmt.Errorf("print pdf: %w", err)
	}
	return pdf, nil
}

const reportCSS = `body{font-family:-apple-system,"Segoe UI",Helvetica,Arial,sans-serif;color:#1f2937;background:#fff;margin:0;padding:0.6rem;line-height:1.5;}
.report-wrap{max-width:900px;margin:0 auto;}
.report-header{border-bottom:3px solid #2563eb;padding-bottom:0.75rem;margin-bottom:1rem;}
.report-meta{color:#4b5563;font-size:0.9rem;}
.report-meta strong{color:#111827;}
.report-badge{display:inline-block;margin:0.4rem 0.4rem 0 0;padding:0.15rem 0.55rem;border-radius:999px;background:#dbeafe;color:#1e3a8a;border:1px solid #93c5fd;font-size:0.8rem;}
.report-badge.risk-high{background:#fee2e2;color:#7f1d1d;border-color:#fca5a5;}
.report-badge.risk-medium{background:#fef3c7;color:#78350f;border-color:#fcd34d;}
.report-html h1{font-size:1.6rem;}
.report-html h2{border-bottom:1px solid #e5e7eb;padding-bottom:0.2rem;margin-top:1.6rem;}
.report-html table{width:100%;border-collapse:collapse;font-size:0.85rem;}
.report-html th,.report-html td{border:1px solid #d1d5db;padding:0.35rem 0.45rem;text-align:left;vertical-align:top;}
.report-html thead th{background:#f3f4f6;}
h2[data-page-break-before="true"]{break-before:page;page-break-before:always;}
html,body,*{-webkit-print-color-adjust:exact !important;print-color-adjust:exact !important;}
@media print{@page{size:auto;margin:12mm;} body{padding:0;}}`

// BuildHTML produces a standalone HTML page for doc.
func BuildHTML(doc Document) (string, error) {
	contentHTML := doc.HTML
	if strings.TrimSpace(doc.Markdown) != "" {
		var content strings.Builder
		md := goldmark.New(goldmark.WithExtensions(extension.GFM))
		if err := md.Convert([]byte(doc.Markdown), &content); err != nil {
			return "", fmt.Errorf("markdown convert: %w", err)
		}
		contentHTML = content.String()
	}
	if strings.TrimSpace(contentHTML) == "" {
		return "", fmt.Errorf("report has no content to render")
	}
	contentHTML = applyPrintLayoutHooks(contentHTML)

	title := doc.Title
	if title == "" {
		title = "AI Readiness Audit"
	}
	return "<!doctype html><html><head><meta charset='utf-8'><title>" + html.EscapeString(title) + "</title>" +
		"<style>" + reportCSS + "</style></head><body>" +
		"<div class='report-wrap'><div class='report-header'>" +
		"<div class='report-meta'>" + buildMetaHTML(doc) + "</div>" +
		"<div class='report-badges'>" + buildBadgeHTML(doc) + "</div>" +
		"</div><div class='report-html'>" + contentHTML + "</div></div>" +
		"</body></html>", nil
}

var (
	reRoadmapHeading = regexp.MustCompile(`(?i)<h2([^>]*)>\s*Implementation Roadmap\s*</h2>`)
	reNextSteps      = regexp.MustCompile(`(?i)<h2([^>]*)>\s*Next Steps\s*</h2>`)
)

// applyPrintLayoutHooks starts the roadmap and next steps on fresh pages.
func applyPrintLayoutHooks(contentHTML string) string {
	out := reRoadmapHeading.ReplaceAllString(contentHTML, `<h2$1 data-page-break-before="true">Implementation Roadmap</h2>`)
	return reNextSteps.ReplaceAllString(out, `<h2$1 data-page-break-before="true">Next Steps</h2>`)
}

func buildMetaHTML(doc Document) string {
	var out strings.Builder
	if c := strings.TrimSpace(doc.Company); c != "" {
		out.WriteString("<div><strong>Company:</strong> " + html.EscapeString(c) + "</div>")
	}
	if !doc.GeneratedAt.IsZero() {
		out.WriteString("<div><strong>Date:</strong> " + html.EscapeString(doc.GeneratedAt.UTC().Format("January 2, 2006")) + "</div>")
	}
	return out.String()
}

func buildBadgeHTML(doc Document) string {
	var out strings.Builder
	if doc.Score != nil {
		out.WriteString(fmt.Sprintf("<span class='report-badge'>Readiness %.0f/100</span>", *doc.Score))
	}
	if r := strings.ToLower(strings.TrimSpace(doc.OverallRisk)); r != "" {
		out.WriteString("<span class='report-badge risk-" + html.EscapeString(r) + "'>Risk: " + html.EscapeString(r) + "</span>")
	}
	return out.String()
}

func detectChromePath() string {
	candidates := []string{
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/usr/bin/google-chrome",
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
