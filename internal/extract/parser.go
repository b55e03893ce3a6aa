// Package extract turns requirement documents into raw requirement statements.
package extract

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppiankov/reqtrace/internal/extract/adapters"
	"github.com/ppiankov/reqtrace/internal/model"
)

// StageName is the pipeline name of this stage
const StageName = "parse"

// Parser reads files, directories and URLs and emits numbered statements
type Parser struct {
	fetcher *Fetcher
	sites   *adapters.Registry
	logger  *zap.Logger
	now     func() time.Time
	newID   func() string
}

// NewParser creates a parser. fetcher may be nil when URLs are not needed.
func NewParser(fetcher *Fetcher, logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{
		fetcher: fetcher,
		sites:   adapters.NewRegistry(),
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
}

// document is the extracted text of one source
type document struct {
	source string
	text   string
}

// Parse reads every input in order and returns the deduplicated statements,
// numbered REQ-001, REQ-002, ... across the whole batch. Stats count sources.
func (p *Parser) Parse(ctx context.Context, inputs ...string) ([]model.RawStatement, model.StageStats, error) {
	var docs []document
	for _, input := range inputs {
		d, err := p.load(ctx, input)
		if err != nil {
			return nil, model.NewStageStats(StageName, len(docs)), err
		}
		docs = append(docs, d...)
	}

	stats := model.NewStageStats(StageName, len(docs))
	createdAt := p.now()
	seen := make(map[string]bool)
	statements := []model.RawStatement{}

	for _, d := range docs {
		before := len(statements)
		for pageIdx, page := range strings.Split(d.text, PageBreak) {
			for _, s := range SplitSentences(CleanPage(page)) {
				if !IsCleanRequirement(s.Text) {
					continue
				}
				key := dedupKey(s.Text)
				if seen[key] {
					continue
				}
				seen[key] = true

				statements = append(statements, model.RawStatement{
					ID:            p.newID(),
					RequirementID: fmt.Sprintf("REQ-%03d", len(statements)+1),
					Source:        d.source,
					Page:          pageIdx + 1,
					Offset:        s.Offset,
					Text:          s.Text,
					CreatedAt:     createdAt,
				})
			}
		}

		p.logger.Info("Parsed document",
			zap.String("source", d.source),
			zap.Int("statements", len(statements)-before),
		)
		stats.Record(d.source, nil)
	}

	return statements, stats, nil
}

func (p *Parser) load(ctx context.Context, input string) ([]document, error) {
	if isURL(input) {
		d, err := p.loadURL(ctx, input)
		if err != nil {
			return nil, err
		}
		return []document{d}, nil
	}

	info, err := os.Stat(input)
	if err != nil {
		return nil, &model.InputError{Source: input, Err: err}
	}

	if !info.IsDir() {
		d, err := loadFile(input, filepath.Base(input))
		if err != nil {
			return nil, err
		}
		return []document{d}, nil
	}

	files, err := CollectFiles(input)
	if err != nil {
		return nil, &model.InputError{Source: input, Err: err}
	}
	if len(files) == 0 {
		p.logger.Warn("No supported documents in directory", zap.String("dir", input))
	}

	docs := make([]document, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		source, relErr := filepath.Rel(input, f)
		if relErr != nil {
			source = f
		}
		d, err := loadFile(f, filepath.ToSlash(source))
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, nil
}

func (p *Parser) loadURL(ctx context.Context, rawURL string) (document, error) {
	if p.fetcher == nil {
		return document{}, &model.InputError{Source: rawURL, Err: fmt.Errorf("URL inputs need a fetcher")}
	}

	result, err := p.fetcher.FetchWithRetry(ctx, rawURL)
	if err != nil {
		return document{}, err
	}

	format, err := formatForResponse(result.ContentType, urlPath(result.FinalURL))
	if err != nil {
		return document{}, &model.InputError{Source: rawURL, Err: err}
	}

	site := p.sites.FindAdapter(result.FinalURL)
	text, err := ExtractPage(result.Body, format, site)
	if err != nil {
		return document{}, &model.InputError{Source: rawURL, Err: err}
	}
	p.logger.Debug("Extracted page", zap.String("url", result.FinalURL), zap.String("adapter", site.Name()))
	return document{source: rawURL, text: text}, nil
}

func loadFile(path, source string) (document, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return document{}, &model.InputError{Source: path, Err: err}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return document{}, &model.InputError{Source: path, Err: err}
	}

	text, err := ExtractText(data, format)
	if err != nil {
		return document{}, &model.InputError{Source: path, Err: err}
	}
	return document{source: source, text: text}, nil
}

// CollectFiles walks dir recursively and returns the supported files, sorted
func CollectFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := extFormats[strings.ToLower(filepath.Ext(path))]; ok {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
