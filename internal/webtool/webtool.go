// Package webtool fetches and digests target pages for the reasoning prompt,
// and captures screenshots through a headless browser. Failures surface as
// tool-output text, never as errors the control loop must handle.
package webtool

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	htmldom "golang.org/x/net/html"
)

const (
	fetchTimeout      = 10 * time.Second
	screenshotTimeout = 15 * time.Second
	maxScrapeLen      = 5000
	maxLinks          = 20
)

// ScreenshotMarker prefixes tool output that carries a capture path instead
// of text. The reason stage looks for it.
const ScreenshotMarker = "[SCREENSHOT]: "

type Tool struct {
	// WorkspaceDir receives screenshot files.
	WorkspaceDir string
	HTTPClient   *http.Client
	// Browser is the headless browser binary used for captures.
	Browser string
}

func New(workspaceDir string) *Tool {
	return &Tool{
		WorkspaceDir: workspaceDir,
		HTTPClient:   &http.Client{Timeout: fetchTimeout},
		Browser:      "chromium",
	}
}

// Scrape fetches target and returns a digest: title, visible text, forms and
// discovered links, truncated to keep the prompt bounded.
func (t *Tool) Scrape(ctx context.Context, target string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Sprintf("Error fetching URL: %v", err)
	}
	resp, err := t.HTTPClient.Do(req)
	if err != nil {
		return fmt.Sprintf("Error fetching URL: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Sprintf("Error fetching URL: status %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Sprintf("Error fetching URL: %v", err)
	}

	digest := Digest(string(body), target)
	if len(digest) > maxScrapeLen {
		digest = digest[:maxScrapeLen]
	}
	return digest
}

// Digest reduces raw HTML to the parts a strategist cares about. Non-HTML
// input degrades to the raw text.
func Digest(html, base string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}

	var sb strings.Builder
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		sb.WriteString("Title: " + title + "\n\n")
	}

	sb.WriteString("[Visible text]\n")
	sb.WriteString(strings.Join(strings.Fields(doc.Text()), " "))
	sb.WriteString("\n")

	if forms := doc.Find("form"); forms.Length() > 0 {
		sb.WriteString("\n[Forms]\n")
		forms.Each(func(_ int, s *goquery.Selection) {
			sb.WriteString(outerHTML(s) + "\n")
		})
	}

	links := Links(doc, base)
	if len(links) > 0 {
		sb.WriteString("\n[Links]\n")
		for _, l := range links {
			sb.WriteString(l + "\n")
		}
	}
	return sb.String()
}

// Links returns up to maxLinks absolute hrefs from the document.
func Links(doc *goquery.Document, base string) []string {
	var out []string
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		out = append(out, absolute(base, href))
		return len(out) < maxLinks
	})
	return out
}

func absolute(base, href string) string {
	u, err := url.Parse(href)
	if err != nil || href == "" {
		return href
	}
	if u.IsAbs() {
		return u.String()
	}
	if base == "" {
		return href
	}
	bu, err := url.Parse(base)
	if err != nil {
		return href
	}
	return bu.ResolveReference(u).String()
}

func outerHTML(sel *goquery.Selection) string {
	var buf bytes.Buffer
	for _, n := range sel.Nodes {
		_ = htmldom.Render(&buf, n)
	}
	return buf.String()
}

// Screenshot captures target into the workspace and returns the marker-tagged
// path, or failure text.
func (t *Tool) Screenshot(ctx context.Context, target string) string {
	name := fmt.Sprintf("screenshot_%s.png", uuid.New().String()[:8])
	path := filepath.Join(t.WorkspaceDir, name)

	execCtx, cancel := context.WithTimeout(ctx, screenshotTimeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, t.Browser,
		"--headless", "--disable-gpu", "--no-sandbox",
		"--screenshot="+path, target)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Sprintf("Screenshot failed: %v: %s", err, strings.TrimSpace(string(out)))
	}
	return ScreenshotMarker + path
}
