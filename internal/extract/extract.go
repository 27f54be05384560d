// Package extract turns uploaded files into formatter input: HTML for the
// document being formatted and plain text for reference material.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/jackzampolin/wordfmt/internal/docx"
)

// Format identifies an upload type.
type Format string

const (
	FormatDocx Format = "docx"
	FormatHTML Format = "html"
	FormatPDF  Format = "pdf"
	FormatText Format = "txt"
)

// DefaultMaxBytes matches the upload limit of the HTTP API.
const DefaultMaxBytes = 20 << 20

// ErrTooLarge is returned for inputs over the configured limit.
var ErrTooLarge = errors.New("file too large")

// Result is an extracted upload.
type Result struct {
	Filename string `json:"filename"`
	Format   Format `json:"format"`
	HTML     string `json:"html,omitempty"`
	Text     string `json:"text"`
	Pages    int    `json:"pages,omitempty"`
	// Fallback is set when structured extraction failed and the raw bytes
	// were used as text.
	Fallback bool `json:"fallback,omitempty"`
}

// Config configures an Extractor.
type Config struct {
	MaxBytes    int64 // default: DefaultMaxBytes
	MaxPDFPages int   // default: 200
	Logger      *slog.Logger
}

// Extractor dispatches on file extension.
type Extractor struct {
	maxBytes    int64
	maxPDFPages int
	policy      *bluemonday.Policy
	logger      *slog.Logger
}

// New creates an extractor.
func New(cfg Config) *Extractor {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if cfg.MaxPDFPages <= 0 {
		cfg.MaxPDFPages = 200
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	// Only the structural tags the rebuilder reads survive sanitizing.
	policy := bluemonday.NewPolicy()
	policy.AllowElements("h1", "h2", "h3", "h4", "h5", "h6", "p", "br", "strong", "b",
		"div", "section", "article", "ul", "ol", "li", "table", "thead", "tbody", "tr", "td", "th",
		"blockquote", "pre", "hr", "em", "i", "u", "span", "a")

	return &Extractor{
		maxBytes:    cfg.MaxBytes,
		maxPDFPages: cfg.MaxPDFPages,
		policy:      policy,
		logger:      cfg.Logger,
	}
}

// Detect returns the format for filename. Unknown extensions are text.
func Detect(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".docx":
		return FormatDocx
	case ".html", ".htm":
		return FormatHTML
	case ".pdf":
		return FormatPDF
	default:
		return FormatText
	}
}

// Document extracts a file to be formatted. Result.HTML carries the body
// for the formatter; plain text is wrapped into paragraphs.
func (e *Extractor) Document(ctx context.Context, filename string, data []byte) (*Result, error) {
	res, err := e.extract(ctx, filename, data)
	if err != nil {
		return nil, err
	}
	if res.HTML == "" {
		res.HTML = TextToHTML(res.Text)
	}
	return res, nil
}

// Reference extracts a requirements or template file as plain text.
func (e *Extractor) Reference(ctx context.Context, filename string, data []byte) (*Result, error) {
	res, err := e.extract(ctx, filename, data)
	if err != nil {
		return nil, err
	}
	res.HTML = ""
	return res, nil
}

func (e *Extractor) extract(ctx context.Context, filename string, data []byte) (*Result, error) {
	if int64(len(data)) > e.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, len(data), e.maxBytes)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	format := Detect(filename)
	res := &Result{Filename: filepath.Base(filename), Format: format}
	e.logger.Debug("extracting upload", "filename", res.Filename, "format", format, "bytes", len(data))

	var err error
	switch format {
	case FormatDocx:
		err = e.fromDocx(res, data)
	case FormatHTML:
		e.fromHTML(res, data)
	case FormatPDF:
		err = e.fromPDF(res, data)
	default:
		res.Text = rawText(data)
	}

	if err != nil {
		// Structured extraction failing is not fatal; the raw bytes are
		// still usable as text.
		e.logger.Warn("structured extraction failed, using raw text",
			"filename", res.Filename, "format", format, "error", err)
		res.HTML = ""
		res.Text = rawText(data)
		res.Fallback = true
	}
	return res, nil
}

func (e *Extractor) fromDocx(res *Result, data []byte) error {
	paras, err := docx.Read(data)
	if err != nil {
		return err
	}
	res.HTML = docx.HTML(paras)
	res.Text = docx.PlainText(paras)
	return nil
}

func (e *Extractor) fromHTML(res *Result, data []byte) {
	res.HTML = strings.TrimSpace(e.policy.Sanitize(string(data)))
	res.Text = HTMLText(res.HTML)
}

// rawText decodes data as UTF-8, dropping invalid sequences and NULs.
func rawText(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) && bytes.IndexByte(data, 0) < 0 {
		return strings.TrimSpace(string(data))
	}
	var sb strings.Builder
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		data = data[size:]
		if (r == utf8.RuneError && size <= 1) || r == 0 {
			continue
		}
		sb.WriteRune(r)
	}
	return strings.TrimSpace(sb.String())
}
