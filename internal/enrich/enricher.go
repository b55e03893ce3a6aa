// Package enrich adds regulation tags and normalized actors and actions to
// structured requirements. It makes no model calls.
package enrich

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/reqtrace/internal/model"
	"github.com/ppiankov/reqtrace/internal/regulation"
)

// StageName is the pipeline name of this stage
const StageName = "enrich"

var modals = map[string]bool{
	"shall": true, "must": true, "should": true, "will": true, "may": true,
}

// Enricher tags requirements against a regulation catalog
type Enricher struct {
	catalog *regulation.Catalog
	mode    regulation.MatchMode
	actors  *Vocabulary
	actions *Vocabulary
	logger  *zap.Logger
}

// New creates an enricher. A nil catalog uses the built-in one.
func New(catalog *regulation.Catalog, cfg model.EnrichmentConfig, logger *zap.Logger) (*Enricher, error) {
	mode, err := regulation.ParseMatchMode(cfg.MatchMode)
	if err != nil {
		return nil, err
	}
	if catalog == nil {
		catalog = regulation.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Enricher{
		catalog: catalog,
		mode:    mode,
		actors:  NewVocabulary(cfg.ActorVocabulary),
		actions: NewVocabulary(cfg.ActionVocabulary),
		logger:  logger,
	}, nil
}

// Run enriches every requirement in order. Records cannot fail here, but a
// cancelled context stops the run.
func (e *Enricher) Run(ctx context.Context, reqs []model.EnrichedRequirement) ([]model.EnrichedRequirement, model.StageStats, error) {
	stats := model.NewStageStats(StageName, len(reqs))
	out := make([]model.EnrichedRequirement, 0, len(reqs))

	for _, req := range reqs {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		enriched := e.Enrich(req)
		e.logger.Debug("Enriched requirement",
			zap.String("requirement_id", enriched.RequirementID),
			zap.Strings("regulations", enriched.Regulations),
			zap.Strings("actors", enriched.NormalizedActors),
			zap.Strings("actions", enriched.NormalizedActions),
		)
		out = append(out, enriched)
		stats.Record(enriched.RequirementID, nil)
	}

	return out, stats, nil
}

// Enrich returns req with regulation tags, normalized actors and normalized
// actions merged into what it already carries. Applying it twice changes nothing.
func (e *Enricher) Enrich(req model.EnrichedRequirement) model.EnrichedRequirement {
	text := req.SearchText()

	req.Regulations = e.mergeRegulations(req.Regulations, e.catalog.Match(text, e.mode))
	req.NormalizedActors = sortedUnion(req.NormalizedActors, e.normalizeActors(req.Actors))
	req.NormalizedActions = sortedUnion(req.NormalizedActions, e.extractActions(req.Statement, req.Description))

	return req
}

// mergeRegulations keeps catalog order for known names, followed by any
// existing tags the catalog does not know
func (e *Enricher) mergeRegulations(existing, matched []string) []string {
	have := make(map[string]bool, len(existing)+len(matched))
	for _, r := range existing {
		have[r] = true
	}
	for _, r := range matched {
		have[r] = true
	}

	out := make([]string, 0, len(have))
	for _, name := range e.catalog.Names() {
		if have[name] {
			out = append(out, name)
			delete(have, name)
		}
	}
	for _, r := range existing {
		if have[r] {
			out = append(out, r)
			delete(have, r)
		}
	}
	return out
}

func (e *Enricher) normalizeActors(actors []string) []string {
	out := make([]string, 0, len(actors))
	for _, a := range actors {
		if c, ok := e.actors.Canonical(a); ok {
			out = append(out, c)
			continue
		}
		if c, ok := e.actors.Find(a); ok {
			out = append(out, c)
			continue
		}
		if n := regulation.Normalize(a); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// extractActions reads the verb after each modal ("shall", "must not",
// "should be able to", "will be") and maps it through the action vocabulary
func (e *Enricher) extractActions(texts ...string) []string {
	var out []string
	for _, text := range texts {
		tokens := strings.Fields(regulation.Normalize(text))
		for i := 0; i < len(tokens); i++ {
			if !modals[tokens[i]] {
				continue
			}
			j := skipAuxiliaries(tokens, i+1)
			if j >= len(tokens) {
				continue
			}
			if c, n := e.actions.prefix(tokens[j:]); n > 0 {
				out = append(out, c)
				i = j + n - 1
				continue
			}
			if !modals[tokens[j]] {
				out = append(out, tokens[j])
			}
			i = j
		}
	}
	return out
}

func skipAuxiliaries(tokens []string, j int) int {
	if j < len(tokens) && tokens[j] == "not" {
		j++
	}
	if j+2 < len(tokens) && tokens[j] == "be" && tokens[j+1] == "able" && tokens[j+2] == "to" {
		j += 3
	} else if j < len(tokens) && tokens[j] == "be" {
		j++
	}
	// one adverb: "shall automatically lock"
	if j+1 < len(tokens) && strings.HasSuffix(tokens[j], "ly") && len(tokens[j]) > 3 {
		j++
	}
	return j
}

func sortedUnion(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
