package extract

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"

	"github.com/ppiankov/reqtrace/internal/extract/adapters"
)

// Format is a supported document format
type Format string

const (
	FormatText     Format = "txt"
	FormatMarkdown Format = "md"
	FormatHTML     Format = "html"
	FormatXML      Format = "xml"
	FormatJSON     Format = "json"
	FormatDOCX     Format = "docx"
)

// PageBreak separates pages in extracted text
const PageBreak = "\f"

var (
	// ErrUnsupportedFormat is returned for formats with no reader (including PDF)
	ErrUnsupportedFormat = errors.New("unsupported document format")

	extFormats = map[string]Format{
		".txt":  FormatText,
		".text": FormatText,
		".md":   FormatMarkdown,
		".html": FormatHTML,
		".htm":  FormatHTML,
		".xml":  FormatXML,
		".json": FormatJSON,
		".docx": FormatDOCX,
	}

	mimeFormats = map[string]Format{
		"text/plain":            FormatText,
		"text/markdown":         FormatMarkdown,
		"text/html":             FormatHTML,
		"application/xhtml+xml": FormatHTML,
		"text/xml":              FormatXML,
		"application/xml":       FormatXML,
		"application/json":      FormatJSON,
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document": FormatDOCX,
	}
)

// FormatForPath returns the format implied by a file extension
func FormatForPath(name string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if f, ok := extFormats[ext]; ok {
		return f, nil
	}
	if ext == "" {
		return "", fmt.Errorf("%w: no file extension", ErrUnsupportedFormat)
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
}

// formatForResponse picks a format from the Content-Type header, falling back
// to the URL path extension and then HTML
func formatForResponse(contentType, urlPath string) (Format, error) {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		if f, ok := mimeFormats[mt]; ok {
			return f, nil
		}
		if mt == "application/pdf" {
			return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, mt)
		}
	}
	if f, err := FormatForPath(path.Base(urlPath)); err == nil {
		return f, nil
	}
	return FormatHTML, nil
}

// ExtractText turns document bytes into plain text. Lines are separated by
// "\n" and pages by PageBreak. HTML is read whole.
func ExtractText(data []byte, format Format) (string, error) {
	return ExtractPage(data, format, genericPage)
}

// ExtractPage is ExtractText with HTML narrowed to the part of the page the
// publisher adapter considers the document body.
func ExtractPage(data []byte, format Format, site adapters.Adapter) (string, error) {
	switch format {
	case FormatText, FormatMarkdown:
		return string(data), nil
	case FormatHTML:
		return htmlText(data, site)
	case FormatXML:
		return xmlText(bytes.NewReader(data))
	case FormatJSON:
		return jsonText(data)
	case FormatDOCX:
		return docxText(data)
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
}

var genericPage = adapters.NewGenericAdapter()

func htmlText(data []byte, site adapters.Adapter) (string, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	return adapters.VisibleText(doc, site), nil
}

// xmlText returns the character data of every element, one run per line
func xmlText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = false

	var buf strings.Builder
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse xml: %w", err)
		}
		if cd, ok := tok.(xml.CharData); ok {
			if text := strings.TrimSpace(string(cd)); text != "" {
				buf.WriteString(text)
				buf.WriteString("\n")
			}
		}
	}
	return buf.String(), nil
}

// jsonText returns every string value (not keys) in document order
func jsonText(data []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	type frame struct {
		object    bool
		expectKey bool
	}
	var stack []frame
	var buf strings.Builder

	valueDone := func() {
		if n := len(stack); n > 0 && stack[n-1].object {
			stack[n-1].expectKey = true
		}
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse json: %w", err)
		}

		switch v := tok.(type) {
		case json.Delim:
			switch v {
			case '{':
				stack = append(stack, frame{object: true, expectKey: true})
			case '[':
				stack = append(stack, frame{})
			case '}', ']':
				stack = stack[:len(stack)-1]
				valueDone()
			}
		case string:
			if n := len(stack); n > 0 && stack[n-1].expectKey {
				stack[n-1].expectKey = false
				continue
			}
			if text := strings.TrimSpace(v); text != "" {
				buf.WriteString(text)
				buf.WriteString("\n")
			}
			valueDone()
		default:
			valueDone()
		}
	}
	if len(stack) > 0 {
		return "", fmt.Errorf("parse json: %w", io.ErrUnexpectedEOF)
	}
	return buf.String(), nil
}

// docxText reads the paragraphs of word/document.xml. Explicit page breaks
// become PageBreak.
func docxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}

	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", errors.New("open docx: word/document.xml not found")
	}

	rc, err := doc.Open()
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer func() { _ = rc.Close() }()

	dec := xml.NewDecoder(rc)
	var (
		out    strings.Builder
		para   strings.Builder
		inText bool
	)

	flush := func() {
		if text := strings.TrimSpace(para.String()); text != "" {
			out.WriteString(text)
			out.WriteString("\n")
		}
		para.Reset()
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse docx: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				para.WriteString(" ")
			case "br":
				if attr(t, "type") == "page" {
					flush()
					out.WriteString(PageBreak)
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				flush()
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		}
	}
	flush()

	return out.String(), nil
}

func attr(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}
