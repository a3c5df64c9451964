package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joelkehle/readiness-audit/internal/render"
	"github.com/joelkehle/readiness-audit/internal/workflow"
)

func main() {
	inputPath := flag.String("input", "", "Path to a saved engine response JSON, report JSON or markdown file")
	outputPath := flag.String("output", "", "Path to write the rendered PDF")
	htmlOutputPath := flag.String("html-output", "", "Optional path to write the intermediate HTML page")
	company := flag.String("company", "", "Company name shown in the report header")
	chromePath := flag.String("chrome", os.Getenv("CHROME_PATH"), "Chromium executable (auto-detected when empty)")
	flag.Parse()

	if *inputPath == "" {
		log.Fatal("missing required -input")
	}
	if *outputPath == "" && *htmlOutputPath == "" {
		log.Fatal("one of -output or -html-output is required")
	}

	in, err := os.ReadFile(*inputPath)
	if err != nil {
		log.Fatalf("read input: %v", err)
	}
	doc, err := documentFrom(in, *company)
	if err != nil {
		log.Fatalf("decode input: %v", err)
	}

	if *htmlOutputPath != "" {
		page, err := render.BuildHTML(doc)
		if err != nil {
			log.Fatalf("build html: %v", err)
		}
		if err := os.WriteFile(*htmlOutputPath, []byte(page), 0o644); err != nil {
			log.Fatalf("write html: %v", err)
		}
	}
	if *outputPath == "" {
		return
	}

	pdf, err := render.NewChromiumRenderer(*chromePath).Render(context.Background(), doc)
	if err != nil {
		log.Fatalf("render pdf: %v", err)
	}
	if err := os.WriteFile(*outputPath, pdf, 0o644); err != nil {
		log.Fatalf("write pdf: %v", err)
	}
	fmt.Printf("wrote %s (%d bytes)\n", *outputPath, len(pdf))
}

// documentFrom accepts an engine response envelope, a bare report or plain
// markdown.
func documentFrom(in []byte, company string) (render.Document, error) {
	doc := render.Document{Company: company, GeneratedAt: time.Now()}
	trimmed := strings.TrimSpace(string(in))
	if !strings.HasPrefix(trimmed, "{") {
		doc.Markdown = trimmed
		return doc, nil
	}

	var env workflow.AuditResponse
	if err := json.Unmarshal(in, &env); err != nil {
		return doc, err
	}
	report := env.Report
	if report == nil {
		report = &workflow.Report{}
		if err := json.Unmarshal(in, report); err != nil {
			return doc, err
		}
	}
	if report.ExecutiveSummary == "" && report.Formats.Markdown == nil && report.Formats.HTML == nil {
		return doc, fmt.Errorf("no report content found")
	}

	if ts, err := time.Parse(time.RFC3339, report.GeneratedAt); err == nil {
		doc.GeneratedAt = ts
	}
	doc.OverallRisk = report.RiskAssessment.OverallRisk
	switch {
	case report.Formats.Markdown != nil && strings.TrimSpace(report.Formats.Markdown.Content) != "":
		doc.Markdown = report.Formats.Markdown.Content
	case report.Formats.HTML != nil && strings.TrimSpace(report.Formats.HTML.Content) != "":
		doc.HTML = report.Formats.HTML.Content
		doc.Title = report.Formats.HTML.Title
	default:
		doc.Markdown = render.MarkdownFromReport(company, *report)
	}
	if report.ExecutiveSummary != "" {
		score := report.AIReadinessScore
		doc.Score = &score
	}
	return doc, nil
}
