package regulation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := New([]Regulation{
		{Name: "HIPAA", Keywords: []string{"PHI", "protected health information"}},
		{Name: "GDPR", Keywords: []string{"personal data", "consent"}},
		{Name: "SOX", Keywords: []string{"financial reporting"}},
	})
	require.NoError(t, err)
	return c
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "the system shall encrypt phi at rest", Normalize("  The system SHALL encrypt PHI, at-rest! "))
	assert.Equal(t, "", Normalize("...  --- "))
	assert.Equal(t, "21 cfr part 11", Normalize("21 CFR Part-11"))
}

func TestMatchHIPAAExample(t *testing.T) {
	c := testCatalog(t)
	got := c.Match("The system shall encrypt all PHI at rest.", MatchWord)
	assert.Equal(t, []string{"HIPAA"}, got)
}

func TestMatchMultipleInCatalogOrder(t *testing.T) {
	c := testCatalog(t)
	got := c.Match("Financial reporting data containing personal data and PHI must be retained.", MatchWord)
	assert.Equal(t, []string{"HIPAA", "GDPR", "SOX"}, got)
}

func TestMatchNoneIsEmptyNotNil(t *testing.T) {
	c := testCatalog(t)
	got := c.Match("The login page shall load in two seconds.", MatchWord)
	require.NotNil(t, got)
	assert.Empty(t, got)

	got = c.Match("", MatchWord)
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestMatchNameIsKeyword(t *testing.T) {
	c := testCatalog(t)
	assert.Equal(t, []string{"GDPR"}, c.Match("Processing must follow gdpr article 17.", MatchWord))
}

func TestMatchModes(t *testing.T) {
	c := testCatalog(t)

	// "phi" inside "graphics" only counts for substring matching
	text := "Render graphics within 100ms."
	assert.Equal(t, []string{"HIPAA"}, c.Match(text, MatchSubstring))
	assert.Empty(t, c.Match(text, MatchWord))
	assert.Empty(t, c.Match(text, MatchStem))

	// Inflected phrase only matches after stemming
	c2, err := New([]Regulation{{Name: "FDA 21 CFR Part 11", Keywords: []string{"electronic record"}}})
	require.NoError(t, err)
	text = "Electronic records shall be time-stamped."
	assert.Empty(t, c2.Match(text, MatchWord))
	assert.Equal(t, []string{"FDA 21 CFR Part 11"}, c2.Match(text, MatchStem))
}

func TestStem(t *testing.T) {
	for _, w := range []string{"records", "recorded", "recording", "record"} {
		assert.Equal(t, "record", Stem(w), w)
	}
	assert.Equal(t, Stem("store"), Stem("stored"))
	assert.Equal(t, Stem("store"), Stem("storing"))
	assert.Equal(t, "policy", Stem("policies"))
	assert.Equal(t, "access", Stem("access"))
	assert.Equal(t, "process", Stem("processes"))
	assert.Equal(t, "phi", Stem("phi"))
}

func TestParseMatchMode(t *testing.T) {
	m, err := ParseMatchMode("")
	require.NoError(t, err)
	assert.Equal(t, MatchWord, m)

	m, err = ParseMatchMode("STEM")
	require.NoError(t, err)
	assert.Equal(t, MatchStem, m)

	_, err = ParseMatchMode("fuzzy")
	assert.Error(t, err)
}

func TestNewValidation(t *testing.T) {
	_, err := New([]Regulation{{Name: " "}})
	assert.Error(t, err)

	_, err = New([]Regulation{{Name: "HIPAA"}, {Name: "hipaa"}})
	assert.ErrorContains(t, err, "duplicate")
}

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	assert.Equal(t, []string{"HIPAA", "GDPR", "SOX", "PCI DSS", "FDA 21 CFR Part 11", "ISO 27001"}, c.Names())
	assert.Equal(t, []string{"HIPAA"}, c.Match("Nurses shall view protected health information.", MatchWord))
	assert.Equal(t, []string{"PCI DSS"}, c.Match("Cardholder data shall be masked on receipts.", MatchWord))
}

func TestParseYAMLAcceptsBareNames(t *testing.T) {
	c, err := Parse([]byte("regulations:\n  - HIPAA\n  - name: GDPR\n    keywords: [consent]\n"), "yaml")
	require.NoError(t, err)
	assert.Equal(t, []string{"HIPAA", "GDPR"}, c.Names())
	assert.Equal(t, []string{"GDPR"}, c.Match("User consent is recorded.", MatchWord))
}

func TestParseJSON(t *testing.T) {
	c, err := Parse([]byte(`{"regulations":[{"name":"SOX","keywords":["internal control"]}]}`), "json")
	require.NoError(t, err)
	assert.Equal(t, []string{"SOX"}, c.Match("Internal control testing is quarterly.", MatchWord))
}

func TestParseEmpty(t *testing.T) {
	_, err := Parse([]byte("regulations: []\n"), "yaml")
	assert.Error(t, err)

	_, err = Parse([]byte("x"), "toml")
	assert.Error(t, err)
}

func TestLoadHCL(t *testing.T) {
	src := `
regulation "HIPAA" {
  description = "Health data"
  keywords    = distinct(concat(["phi", "ePHI"], [lower("PHI"), "medical record"]))
}

regulation "GDPR" {
  keywords = [format("%s data", "personal")]
}
`
	path := filepath.Join(t.TempDir(), "regs.hcl")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	c, err := Load(path)
	require.NoError(t, err)

	regs := c.Regulations()
	require.Len(t, regs, 2)
	assert.Equal(t, "HIPAA", regs[0].Name)
	assert.Equal(t, "Health data", regs[0].Description)
	assert.Equal(t, []string{"phi", "ePHI", "medical record"}, regs[0].Keywords)
	assert.Equal(t, []string{"GDPR"}, c.Match("Personal data is exported nightly.", MatchWord))
}

func TestLoadHCLError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`regulation { keywords = [ }`), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
