// Package cvparser implements the CV Parser: extracts text from résumés
// into a structured record, memoised by absolute path.
package cvparser

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jobpilot/automation/internal/types"
)

const maxUploadSizeBytes = 5 * 1024 * 1024 // 5 MB

// Config controls accepted formats and pacing.
type Config struct {
	SupportedFormats []string
	PageParseDelay   time.Duration
}

// DefaultConfig mirrors the original implementation's accepted formats.
func DefaultConfig() Config {
	return Config{
		SupportedFormats: []string{".pdf", ".docx", ".txt"},
		PageParseDelay:   10 * time.Millisecond,
	}
}

// Enricher optionally augments a parsed record with additional structured
// fields. It must never override RawText or Filename.
type Enricher interface {
	Enrich(ctx context.Context, record *types.CVRecord) error
}

// Parser extracts and caches CV records by absolute path.
type Parser struct {
	cfg      Config
	enricher Enricher

	mu    sync.Mutex
	cache map[string]*types.CVRecord
}

// New creates a Parser. enricher may be nil to skip LLM-based enrichment.
func New(cfg Config, enricher Enricher) *Parser {
	if len(cfg.SupportedFormats) == 0 {
		cfg = DefaultConfig()
	}
	return &Parser{cfg: cfg, enricher: enricher, cache: make(map[string]*types.CVRecord)}
}

func (p *Parser) supported(ext string) bool {
	ext = strings.ToLower(ext)
	for _, f := range p.cfg.SupportedFormats {
		if strings.ToLower(f) == ext {
			return true
		}
	}
	return false
}

// PrepareCV verifies the file exists and returns the absolute path together
// with its parsed record, parsing exactly once per path for the process
// lifetime.
func (p *Parser) PrepareCV(ctx context.Context, path string) (string, *types.CVRecord, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", nil, err
	}
	if _, err := os.Stat(abs); err != nil {
		if os.IsNotExist(err) {
			return "", nil, fmt.Errorf("cvparser: %s: %w", path, types.ErrNotFound)
		}
		return "", nil, err
	}

	p.mu.Lock()
	if cached, ok := p.cache[abs]; ok {
		p.mu.Unlock()
		return abs, cached, nil
	}
	p.mu.Unlock()

	record, err := p.ParseCV(ctx, abs)
	if err != nil {
		return "", nil, err
	}

	p.mu.Lock()
	p.cache[abs] = record
	p.mu.Unlock()
	return abs, record, nil
}

// ParseCV extracts text and builds a record. It does not consult or update
// the cache; callers that want memoisation should use PrepareCV.
func (p *Parser) ParseCV(ctx context.Context, path string) (*types.CVRecord, error) {
	ext := filepath.Ext(path)
	if !p.supported(ext) {
		return nil, fmt.Errorf("cvparser: %s: %w", ext, types.ErrUnsupportedFormat)
	}

	text, err := p.ExtractText(ctx, path)
	if err != nil {
		return nil, err
	}

	record := &types.CVRecord{
		RawText:  text,
		Filename: filepath.Base(path),
	}

	if p.enricher != nil {
		if err := p.enricher.Enrich(ctx, record); err != nil {
			log.Printf("[CVParser] enrichment failed for %s: %v", path, err)
		} else {
			record.RawText = text
			record.Filename = filepath.Base(path)
		}
	}
	return record, nil
}

// ExtractText reads the raw text of the file at path. PDF extraction waits
// cfg.PageParseDelay once per file before returning;
// this implementation treats PDF/TXT identically at the byte level and
// leaves structural PDF parsing to a pluggable backend (none is wired by
// default, matching the original implementation's own incomplete DOCX path).
func (p *Parser) ExtractText(ctx context.Context, path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".txt":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("cvparser: %s: %w", path, types.ErrUnreadable)
		}
		return string(data), nil
	case ".pdf":
		return p.extractPDF(ctx, path)
	case ".docx":
		log.Printf("[CVParser] DOCX text extraction not implemented for %s", path)
		return "", nil
	default:
		return "", fmt.Errorf("cvparser: %s: %w", ext, types.ErrUnsupportedFormat)
	}
}

// extractPDF is a placeholder for a real PDF text extraction backend. It
// waits one PageParseDelay per file (not per page) and returns ctx.Err() if
// ctx is cancelled during that wait.
func (p *Parser) extractPDF(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("cvparser: %s: %w", path, types.ErrUnreadable)
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(p.cfg.PageParseDelay):
	}
	return string(data), nil
}

// ValidateForUpload enforces the upload-time constraints: the file must
// exist, be non-empty, be a supported format and be at most 5 MB.
func (p *Parser) ValidateForUpload(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, fmt.Errorf("cvparser: %s: %w", path, types.ErrNotFound)
		}
		return false, err
	}
	if info.Size() == 0 {
		return false, nil
	}
	if info.Size() > maxUploadSizeBytes {
		return false, fmt.Errorf("cvparser: %s: %w", path, types.ErrTooLarge)
	}
	if !p.supported(filepath.Ext(path)) {
		return false, fmt.Errorf("cvparser: %s: %w", filepath.Ext(path), types.ErrUnsupportedFormat)
	}
	return true, nil
}
