package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/reqtrace/internal/cache"
)

func TestPrintCacheUsage(t *testing.T) {
	c := cache.NewDiskCache(t.TempDir(), time.Hour)

	var buf bytes.Buffer
	if err := printCacheUsage(&buf, c); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "Cache is empty" {
		t.Errorf("unexpected output for empty cache: %q", buf.String())
	}

	_ = c.Set(cache.Key("generate", "a"), []byte("1"), 0)
	_ = c.Set(cache.Key("embed", "b"), []byte("2"), 0)
	_ = c.Set(cache.Key("embed", "c"), []byte("3"), 0)

	buf.Reset()
	if err := printCacheUsage(&buf, c); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header, two namespaces and total, got %q", buf.String())
	}
	if f := strings.Fields(lines[1]); f[0] != "embed" || f[1] != "2" {
		t.Errorf("unexpected embed row: %q", lines[1])
	}
	if f := strings.Fields(lines[3]); f[0] != "total" || f[1] != "3" || f[2] != "0" {
		t.Errorf("unexpected total row: %q", lines[3])
	}
}
