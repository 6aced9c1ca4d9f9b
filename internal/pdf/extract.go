package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Document is the page-segmented text of a PDF.
type Document struct {
	Pages []string
}

// PageCount returns the number of pages read.
func (d *Document) PageCount() int {
	return len(d.Pages)
}

// Text joins all pages separated by blank lines.
func (d *Document) Text() string {
	return strings.Join(d.Pages, "\n\n")
}

// Extractor pulls text out of PDF content streams. Only literal and hex
// string operands of the text showing operators are recovered; layout is not.
type Extractor struct {
	conf *model.Configuration
}

// NewExtractor returns an Extractor using relaxed validation so that slightly
// malformed publisher PDFs still open.
func NewExtractor() *Extractor {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Extractor{conf: conf}
}

// ExtractFile opens path and extracts its text.
func (e *Extractor) ExtractFile(ctx context.Context, path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	return e.Extract(ctx, f)
}

// ExtractBytes extracts text from an in-memory PDF.
func (e *Extractor) ExtractBytes(ctx context.Context, content []byte) (*Document, error) {
	return e.Extract(ctx, bytes.NewReader(content))
}

// Extract reads a PDF from rs and returns the text of every page.
func (e *Extractor) Extract(ctx context.Context, rs io.ReadSeeker) (*Document, error) {
	pdfCtx, err := api.ReadContext(rs, e.conf)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	if err := api.ValidateContext(pdfCtx); err != nil {
		return nil, fmt.Errorf("validate pdf: %w", err)
	}
	if err := pdfCtx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("page count: %w", err)
	}

	doc := &Document{Pages: make([]string, 0, pdfCtx.PageCount)}
	for page := 1; page <= pdfCtx.PageCount; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		r, err := pdfcpu.ExtractPageContent(pdfCtx, page)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", page, err)
		}
		if r == nil {
			doc.Pages = append(doc.Pages, "")
			continue
		}
		content, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read page %d: %w", page, err)
		}
		doc.Pages = append(doc.Pages, TextFromContentStream(content))
	}
	return doc, nil
}

// TextFromContentStream recovers the shown strings of a decoded page content
// stream. Text positioning operators start a new line; large negative kerning
// inside a TJ array becomes a space.
func TextFromContentStream(content []byte) string {
	var out, line strings.Builder
	flush := func() {
		if s := strings.TrimSpace(line.String()); s != "" {
			out.WriteString(s)
			out.WriteByte('\n')
		}
		line.Reset()
	}

	inArray := false
	for i := 0; i < len(content); {
		c := content[i]
		switch {
		case c == '(':
			s, n := readLiteral(content[i:])
			line.WriteString(s)
			i += n
		case c == '<' && i+1 < len(content) && content[i+1] == '<':
			i += 2
		case c == '>' && i+1 < len(content) && content[i+1] == '>':
			i += 2
		case c == '<':
			s, n := readHex(content[i:])
			line.WriteString(s)
			i += n
		case c == '[':
			inArray = true
			i++
		case c == ']':
			inArray = false
			i++
		case c == '%':
			for i < len(content) && content[i] != '\n' && content[i] != '\r' {
				i++
			}
		case isWhitespace(c) || isDelimiter(c):
			i++
		default:
			start := i
			i++
			for i < len(content) && !isWhitespace(content[i]) && !isDelimiter(content[i]) {
				i++
			}
			tok := string(content[start:i])
			switch tok {
			case "Td", "TD", "T*", "ET", "'", "\"":
				flush()
			default:
				if inArray {
					if v, err := strconv.ParseFloat(tok, 64); err == nil && v < -200 {
						line.WriteByte(' ')
					}
				}
			}
		}
	}
	flush()
	return strings.TrimRight(out.String(), "\n")
}

// readLiteral decodes a balanced literal string starting at b[0] == '('.
// It returns the decoded text and the number of bytes consumed.
func readLiteral(b []byte) (string, int) {
	var sb strings.Builder
	depth := 0
	i := 0
	for i < len(b) {
		c := b[i]
		switch c {
		case '(':
			if depth > 0 {
				sb.WriteByte(c)
			}
			depth++
			i++
		case ')':
			depth--
			i++
			if depth == 0 {
				return sb.String(), i
			}
			sb.WriteByte(c)
		case '\\':
			i++
			if i >= len(b) {
				return sb.String(), i
			}
			esc := b[i]
			switch esc {
			case 'n':
				sb.WriteByte('\n')
				i++
			case 'r':
				sb.WriteByte('\r')
				i++
			case 't':
				sb.WriteByte('\t')
				i++
			case 'b', 'f':
				i++
			case '\r', '\n':
				// Line continuation.
				i++
				if esc == '\r' && i < len(b) && b[i] == '\n' {
					i++
				}
			default:
				if esc >= '0' && esc <= '7' {
					j := i
					for j < len(b) && j < i+3 && b[j] >= '0' && b[j] <= '7' {
						j++
					}
					v, _ := strconv.ParseUint(string(b[i:j]), 8, 8)
					sb.WriteByte(byte(v))
					i = j
				} else {
					sb.WriteByte(esc)
					i++
				}
			}
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return sb.String(), i
}

// readHex decodes a hex string starting at b[0] == '<'. Non-printable results
// are dropped since they are usually glyph ids rather than text.
func readHex(b []byte) (string, int) {
	end := bytes.IndexByte(b, '>')
	if end < 0 {
		return "", len(b)
	}
	digits := make([]byte, 0, end)
	for _, c := range b[1:end] {
		if !isWhitespace(c) {
			digits = append(digits, c)
		}
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}

	var sb strings.Builder
	for i := 0; i+1 < len(digits); i += 2 {
		v, err := strconv.ParseUint(string(digits[i:i+2]), 16, 8)
		if err != nil {
			return "", end + 1
		}
		if v < 0x20 || v > 0x7e {
			return "", end + 1
		}
		sb.WriteByte(byte(v))
	}
	return sb.String(), end + 1
}

func isWhitespace(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\f', 0:
		return true
	}
	return false
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}
