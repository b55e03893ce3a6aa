package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestExtractText_HTML(t *testing.T) {
	doc := `<html><head><title>Ignored</title><style>p{}</style></head>
<body><h1>Policy</h1><p>The system shall encrypt PHI.</p><script>var x = 1;</script>
<p>Users <b>must</b> sign in.</p></body></html>`

	text, err := ExtractText([]byte(doc), FormatHTML)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if strings.Contains(text, "Ignored") || strings.Contains(text, "var x") {
		t.Errorf("Expected head and script text to be skipped, got %q", text)
	}
	if !strings.Contains(text, "The system shall encrypt PHI.") {
		t.Errorf("Expected paragraph text, got %q", text)
	}
	if !strings.Contains(text, "Users\nmust\nsign in.") {
		t.Errorf("Expected inline text nodes on separate lines, got %q", text)
	}
}

func TestExtractText_XML(t *testing.T) {
	doc := `<?xml version="1.0"?><reqs><req id="1">The system shall log access.</req><req id="2"> Data must be retained. </req></reqs>`

	text, err := ExtractText([]byte(doc), FormatXML)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	want := "The system shall log access.\nData must be retained.\n"
	if text != want {
		t.Errorf("ExtractText() = %q, want %q", text, want)
	}
}

func TestExtractText_JSON(t *testing.T) {
	doc := `{"title": "Spec", "count": 3, "requirements": [{"text": "The system shall log access."}, "Data must be retained.", true, null], "nested": {"note": "last"}}`

	text, err := ExtractText([]byte(doc), FormatJSON)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	want := "Spec\nThe system shall log access.\nData must be retained.\nlast\n"
	if text != want {
		t.Errorf("ExtractText() = %q, want %q", text, want)
	}
}

func TestExtractText_JSONInvalid(t *testing.T) {
	if _, err := ExtractText([]byte(`{"a": `), FormatJSON); err == nil {
		t.Error("Expected error for truncated JSON")
	}
}

func buildDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	if _, err := w.Write([]byte(documentXML)); err != nil {
		t.Fatalf("write zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestExtractText_DOCX(t *testing.T) {
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>
<w:p><w:r><w:t>The system shall </w:t></w:r><w:r><w:t>encrypt PHI.</w:t></w:r></w:p>
<w:p><w:r><w:br w:type="page"/></w:r></w:p>
<w:p><w:r><w:t>Users must sign in.</w:t></w:r></w:p>
</w:body></w:document>`

	text, err := ExtractText(buildDOCX(t, doc), FormatDOCX)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	want := "The system shall encrypt PHI.\n" + PageBreak + "Users must sign in.\n"
	if text != want {
		t.Errorf("ExtractText() = %q, want %q", text, want)
	}
}

func TestExtractText_DOCXMissingDocument(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_ = zw.Close()

	if _, err := ExtractText(buf.Bytes(), FormatDOCX); err == nil {
		t.Error("Expected error for docx without word/document.xml")
	}
}

func TestFormatForPath(t *testing.T) {
	for _, name := range []string{"a.txt", "b.MD", "c.htm", "d.html", "e.xml", "f.json", "g.docx"} {
		if _, err := FormatForPath(name); err != nil {
			t.Errorf("FormatForPath(%q) unexpected error: %v", name, err)
		}
	}
	for _, name := range []string{"spec.pdf", "notes.rtf", "README"} {
		_, err := FormatForPath(name)
		if !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("FormatForPath(%q) = %v, want ErrUnsupportedFormat", name, err)
		}
	}
}

func TestFormatForResponse(t *testing.T) {
	tests := []struct {
		contentType string
		path        string
		want        Format
		wantErr     bool
	}{
		{"text/html; charset=utf-8", "/spec", FormatHTML, false},
		{"application/json", "/spec", FormatJSON, false},
		{"application/octet-stream", "/files/spec.docx", FormatDOCX, false},
		{"", "/spec.xml", FormatXML, false},
		{"", "/unknown", FormatHTML, false},
		{"application/pdf", "/spec.pdf", "", true},
	}

	for _, tt := range tests {
		got, err := formatForResponse(tt.contentType, tt.path)
		if (err != nil) != tt.wantErr {
			t.Errorf("formatForResponse(%q, %q) error = %v, wantErr %v", tt.contentType, tt.path, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("formatForResponse(%q, %q) = %q, want %q", tt.contentType, tt.path, got, tt.want)
		}
	}
}
