// Package advisory ingests government policy circulars (PDF files or web
// pages) into the local store. Extracts of recent circulars for a crop
// are offered as extra context when generating recommendation text.
package advisory

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"

	"github.com/arivoli/neer/internal/storage"
)

const maxFetchSize = 5 << 20 // 5MB

// extractLen bounds how much of a circular is injected into a prompt.
const extractLen = 280

// Ingestor stores circular text extracted from PDFs and web pages.
type Ingestor struct {
	store      *storage.Store
	httpClient *http.Client
}

// NewIngestor creates an Ingestor. A nil httpClient gets a 10s-timeout
// default.
func NewIngestor(store *storage.Store, httpClient *http.Client) *Ingestor {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Ingestor{store: store, httpClient: httpClient}
}

// IngestText stores raw circular text directly.
func (i *Ingestor) IngestText(title, crop, content, source string) (storage.Advisory, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return storage.Advisory{}, fmt.Errorf("circular %q has no text content", title)
	}
	a := storage.Advisory{
		ID:        uuid.New().String(),
		Title:     title,
		Crop:      crop,
		Content:   content,
		Source:    source,
		CreatedAt: time.Now().UTC(),
	}
	if err := i.store.SaveAdvisory(a); err != nil {
		return storage.Advisory{}, fmt.Errorf("saving advisory: %w", err)
	}
	return a, nil
}

// IngestPDF extracts the plain text of a circular PDF and stores it.
func (i *Ingestor) IngestPDF(path, title, crop string) (storage.Advisory, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return storage.Advisory{}, fmt.Errorf("opening pdf %s: %w", path, err)
	}
	defer f.Close()

	textReader, err := reader.GetPlainText()
	if err != nil {
		return storage.Advisory{}, fmt.Errorf("extracting pdf text: %w", err)
	}
	text, err := io.ReadAll(textReader)
	if err != nil {
		return storage.Advisory{}, fmt.Errorf("reading pdf text: %w", err)
	}

	if title == "" {
		title = path
	}
	return i.IngestText(title, crop, string(text), "pdf")
}

// IngestURL fetches a circular page and stores its visible text.
func (i *Ingestor) IngestURL(ctx context.Context, url, title, crop string) (storage.Advisory, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return storage.Advisory{}, fmt.Errorf("invalid url: %w", err)
	}
	resp, err := i.httpClient.Do(req)
	if err != nil {
		return storage.Advisory{}, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return storage.Advisory{}, fmt.Errorf("fetching %s: status %d", url, resp.StatusCode)
	}

	text := htmlToText(io.LimitReader(resp.Body, maxFetchSize))
	if title == "" {
		title = url
	}
	return i.IngestText(title, crop, text, "url")
}

// ExtractsForCrop returns short extracts of the most recent circulars for
// a crop, suitable for prompt injection. Errors degrade to no extracts;
// missing advisories never block generation.
func ExtractsForCrop(store *storage.Store, crop string, limit int) []string {
	if store == nil || crop == "" {
		return nil
	}
	advisories, err := store.ListAdvisories(crop, limit)
	if err != nil {
		return nil
	}
	extracts := make([]string, 0, len(advisories))
	for _, a := range advisories {
		extracts = append(extracts, extract(a))
	}
	return extracts
}

func extract(a storage.Advisory) string {
	text := strings.Join(strings.Fields(a.Content), " ")
	if len(text) > extractLen {
		cut := strings.LastIndex(text[:extractLen], " ")
		if cut <= 0 {
			cut = extractLen
		}
		text = text[:cut] + "…"
	}
	if a.Title != "" {
		return a.Title + ": " + text
	}
	return text
}

// htmlToText walks the token stream and collects visible text, skipping
// script and style bodies.
func htmlToText(r io.Reader) string {
	tokenizer := html.NewTokenizer(r)
	var sb strings.Builder
	skipDepth := 0

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(sb.String())
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if skippedTag(string(name)) {
				skipDepth++
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if skippedTag(string(name)) && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			text := strings.TrimSpace(string(tokenizer.Text()))
			if text == "" {
				continue
			}
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(text)
		}
	}
}

func skippedTag(name string) bool {
	switch name {
	case "script", "style", "noscript":
		return true
	}
	return false
}
