package webtool

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

const samplePage = `<!doctype html>
<html>
<head><title>Login Portal</title></head>
<body>
<h1>Welcome</h1>
<p>Please sign in.</p>
<form action="/login" method="post"><input name="user"><input name="pass" type="password"></form>
<a href="/admin">admin</a>
<a href="https://example.org/help">help</a>
</body>
</html>`

func TestDigest(t *testing.T) {
	out := Digest(samplePage, "http://target.local/")

	if !strings.Contains(out, "Title: Login Portal") {
		t.Errorf("digest missing title:\n%s", out)
	}
	if !strings.Contains(out, "Please sign in.") {
		t.Errorf("digest missing visible text:\n%s", out)
	}
	if !strings.Contains(out, `action="/login"`) {
		t.Errorf("digest missing form markup:\n%s", out)
	}
	if !strings.Contains(out, "http://target.local/admin") {
		t.Errorf("digest missing resolved relative link:\n%s", out)
	}
	if !strings.Contains(out, "https://example.org/help") {
		t.Errorf("digest missing absolute link:\n%s", out)
	}
}

func TestScrape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	tool := New(t.TempDir())
	out := tool.Scrape(context.Background(), srv.URL)
	if !strings.Contains(out, "Login Portal") {
		t.Errorf("scrape output missing page content:\n%s", out)
	}
}

func TestScrapeErrorsBecomeText(t *testing.T) {
	tool := New(t.TempDir())

	out := tool.Scrape(context.Background(), "http://127.0.0.1:1/unreachable")
	if !strings.Contains(out, "Error fetching URL") {
		t.Errorf("scrape error not surfaced as text: %q", out)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()
	out = tool.Scrape(context.Background(), srv.URL)
	if !strings.Contains(out, "status") {
		t.Errorf("expected status error text, got %q", out)
	}
}

func TestScrapeTruncates(t *testing.T) {
	big := "<html><body><p>" + strings.Repeat("word ", 5000) + "</p></body></html>"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(big))
	}))
	defer srv.Close()

	tool := New(t.TempDir())
	out := tool.Scrape(context.Background(), srv.URL)
	if len(out) > maxScrapeLen {
		t.Errorf("scrape output not truncated: %d chars", len(out))
	}
}

func TestLinksCap(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("<html><body>")
	for i := 0; i < 50; i++ {
		sb.WriteString(`<a href="/p">x</a>`)
	}
	sb.WriteString("</body></html>")

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(sb.String()))
	if err != nil {
		t.Fatal(err)
	}
	links := Links(doc, "http://t/")
	if len(links) != maxLinks {
		t.Errorf("len(links) = %d, want cap of %d", len(links), maxLinks)
	}
}

func TestScreenshotFailureIsText(t *testing.T) {
	tool := New(t.TempDir())
	tool.Browser = "definitely-not-a-browser-binary"

	out := tool.Screenshot(context.Background(), "http://target")
	if !strings.Contains(out, "Screenshot failed") {
		t.Errorf("expected failure text, got %q", out)
	}
	if strings.HasPrefix(out, ScreenshotMarker) {
		t.Errorf("failure output must not carry the screenshot marker")
	}
}
