package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/jonathan/skill-extractor/internal/fetch"
)

var (
	// ErrInvalidURL is returned when URL is malformed
	ErrInvalidURL = errors.New("invalid URL")
	// ErrHTTPRequestFailed is returned when HTTP request fails
	ErrHTTPRequestFailed = errors.New("HTTP request failed")
	// ErrContentExtractionFailed is returned when content extraction fails
	ErrContentExtractionFailed = errors.New("content extraction failed")
)

// URLOptions configures IngestFromURL.
type URLOptions struct {
	// Fetcher retrieves the page; nil means a plain HTTP client.
	Fetcher fetch.Fetcher
	// Browser renders client-side pages when UseBrowser is set; nil means a
	// default headless browser.
	Browser    fetch.Fetcher
	UseBrowser bool
	Verbose    bool
}

// IngestFromURL fetches a job posting and returns its main text.
// Platform detection picks the content and noise selectors. When UseBrowser
// is set and the page yields too little text, or the platform is known to
// render client-side, the page is rendered in a headless browser and the
// longer of the two extractions is kept.
func IngestFromURL(ctx context.Context, urlStr string, opts *URLOptions) (string, *Metadata, error) {
	if opts == nil {
		opts = &URLOptions{}
	}
	if err := fetch.ValidateURL(urlStr); err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}

	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = fetch.NewClient()
	}

	platform := fetch.DetectPlatform(urlStr)
	if opts.Verbose {
		log.Printf("[VERBOSE] URL: %s", urlStr)
		log.Printf("[VERBOSE] Detected platform: %s", platform)
	}

	result, err := fetcher.Fetch(ctx, urlStr)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrHTTPRequestFailed, err)
	}
	if opts.Verbose {
		log.Printf("[VERBOSE] Fetched HTML: %d bytes (cached: %t)", len(result.HTML), result.FromCache)
	}

	contentSelectors := fetch.PlatformContentSelectors(platform)
	noiseSelectors := fetch.PlatformNoiseSelectors(platform)

	textContent, err := fetch.ExtractMainText(result.HTML, contentSelectors, noiseSelectors...)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrContentExtractionFailed, err)
	}
	if opts.Verbose {
		log.Printf("[VERBOSE] Extracted text: %d chars", len(textContent))
	}

	rendered := false
	if opts.UseBrowser && (fetch.ShouldUseBrowser(textContent) || fetch.RendersClientSide(platform)) {
		browser := opts.Browser
		if browser == nil {
			browser = fetch.NewBrowser(opts.Verbose)
		}
		if opts.Verbose {
			log.Printf("[VERBOSE] Content too short (%d chars < %d) or client-rendered platform, falling back to browser rendering...",
				len(textContent), fetch.MinContentLength)
		}

		browserResult, browserErr := browser.Fetch(ctx, urlStr)
		switch {
		case browserErr != nil:
			if opts.Verbose {
				log.Printf("[VERBOSE] Browser rendering failed: %v, using HTTP content", browserErr)
			}
		default:
			browserText, err := fetch.ExtractMainText(browserResult.HTML, contentSelectors, noiseSelectors...)
			if err != nil {
				if opts.Verbose {
					log.Printf("[VERBOSE] Browser content extraction failed: %v", err)
				}
			} else if len(browserText) > len(textContent) {
				textContent = browserText
				rendered = true
				if opts.Verbose {
					log.Printf("[VERBOSE] Browser extracted text: %d chars", len(textContent))
				}
			}
		}
	}

	text, err := toText(textContent, false)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrContentExtractionFailed, err)
	}

	metadata := NewMetadata(text, SourceURL)
	metadata.URL = urlStr
	metadata.Platform = string(platform)
	metadata.Rendered = rendered
	metadata.FromCache = result.FromCache

	return text, metadata, nil
}
