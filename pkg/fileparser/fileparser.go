// Package fileparser turns uploaded assignment files into plain text.
package fileparser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
)

// Format identifies a supported document type.
type Format string

const (
	FormatText Format = "txt"
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatXLSX Format = "xlsx"
)

var (
	// ErrUnsupportedFormat indicates the file type cannot be converted to text.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrParseFailure indicates a supported file could not be read.
	ErrParseFailure = errors.New("file could not be parsed")
	// ErrTooLarge indicates the payload exceeded the configured limit.
	ErrTooLarge = errors.New("file exceeds maximum allowed size")
)

// Error carries the file and format behind a parse failure.
type Error struct {
	FileName string
	Format   Format
	MimeType string
	Kind     error
	Cause    error
	// Replacement names the readable format to convert a legacy file to.
	Replacement string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %v", e.FileName, e.Kind)
	if e.Format != "" {
		msg += " (" + string(e.Format) + ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// UserMessage explains the failure to the uploader.
func (e *Error) UserMessage() string {
	switch {
	case errors.Is(e.Kind, ErrUnsupportedFormat) && e.Replacement != "":
		return fmt.Sprintf("%s uses a legacy format that cannot be read. Save it as %s and upload it again.", e.FileName, e.Replacement)
	case errors.Is(e.Kind, ErrUnsupportedFormat):
		return fmt.Sprintf("%s is not a supported file type. Upload a .txt, .pdf, .docx or .xlsx file.", e.FileName)
	case errors.Is(e.Kind, ErrTooLarge):
		return fmt.Sprintf("%s is too large.", e.FileName)
	default:
		return fmt.Sprintf("%s could not be read. Please check the file and upload it again.", e.FileName)
	}
}

// Document is the text extracted from one file.
type Document struct {
	FileName string `json:"file_name"`
	Format   Format `json:"format"`
	MimeType string `json:"mime_type"`
	Text     string `json:"text"`
	Pages    int    `json:"pages,omitempty"`
}

// Parser extracts text from uploads no larger than MaxBytes.
type Parser struct {
	MaxBytes int64
}

// New returns a parser accepting files up to maxSizeMB megabytes.
func New(maxSizeMB int) *Parser {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	return &Parser{MaxBytes: int64(maxSizeMB) * 1024 * 1024}
}

// ParseReader reads at most MaxBytes from r and parses the result.
func (p *Parser) ParseReader(name string, r io.Reader) (Document, error) {
	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(r, p.MaxBytes+1)); err != nil {
		return Document{}, &Error{FileName: name, Kind: ErrParseFailure, Cause: err}
	}
	return p.Parse(name, buf.Bytes())
}

// Parse converts data to text according to its extension, falling back to
// content sniffing when the extension is missing or unknown.
func (p *Parser) Parse(name string, data []byte) (Document, error) {
	if p.MaxBytes > 0 && int64(len(data)) > p.MaxBytes {
		return Document{}, &Error{FileName: name, Kind: ErrTooLarge}
	}

	format, mime, err := DetectFormat(name, data)
	if err != nil {
		return Document{}, err
	}

	doc := Document{FileName: name, Format: format, MimeType: mime}
	var text string
	switch format {
	case FormatText:
		text = decodeText(data)
	case FormatPDF:
		text, doc.Pages, err = extractPDF(data)
	case FormatDOCX:
		text, err = extractDOCX(data, p.archiveLimit())
	case FormatXLSX:
		text, err = extractXLSX(data)
	}
	if err != nil {
		return Document{}, &Error{FileName: name, Format: format, MimeType: mime, Kind: ErrParseFailure, Cause: err}
	}

	doc.Text = normalizeText(text)
	return doc, nil
}

func (p *Parser) archiveLimit() uint64 {
	if p.MaxBytes <= 0 {
		return 0
	}
	return uint64(p.MaxBytes) * 20
}

const (
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Binary Office formats excelize and the docx reader cannot open.
var legacyReplacements = map[string]string{
	".xls": ".xlsx",
	".doc": ".docx",
}

// DetectFormat resolves the format of a file and its sniffed MIME type.
func DetectFormat(name string, data []byte) (Format, string, error) {
	mime := mimetype.Detect(data)
	detected := mime.String()

	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".txt", ".md", ".text":
		return FormatText, detected, nil
	case ".pdf":
		return FormatPDF, detected, nil
	case ".docx":
		return FormatDOCX, detected, nil
	case ".xlsx":
		return FormatXLSX, detected, nil
	case ".xls", ".doc":
		return "", detected, &Error{FileName: name, MimeType: detected, Kind: ErrUnsupportedFormat, Replacement: legacyReplacements[ext]}
	case ".ppt", ".pptx", ".odt":
		return "", detected, &Error{FileName: name, MimeType: detected, Kind: ErrUnsupportedFormat}
	}

	switch {
	case mime.Is("application/pdf"):
		return FormatPDF, detected, nil
	case mime.Is(mimeDOCX):
		return FormatDOCX, detected, nil
	case mime.Is(mimeXLSX):
		return FormatXLSX, detected, nil
	case mime.Is("text/plain"):
		return FormatText, detected, nil
	}
	return "", detected, &Error{FileName: name, MimeType: detected, Kind: ErrUnsupportedFormat}
}

func decodeText(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), "")
}

var blankLines = regexp.MustCompile(`\n{3,}`)

func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	text = strings.Join(lines, "\n")
	return strings.TrimSpace(blankLines.ReplaceAllString(text, "\n\n"))
}
