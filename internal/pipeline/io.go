package pipeline

import (
	"fmt"
	"os"

	"github.com/ppiankov/reqtrace/internal/artifact"
	"github.com/ppiankov/reqtrace/internal/coverage"
	"github.com/ppiankov/reqtrace/internal/model"
)

// readRequirements reads structured or enriched requirements. Enrichment
// slices are initialized so that later stages only ever append.
func readRequirements(path string) ([]model.EnrichedRequirement, error) {
	reqs, err := artifact.ReadJSON[[]model.EnrichedRequirement](path)
	if err != nil {
		return nil, err
	}
	for i := range reqs {
		if reqs[i].Regulations == nil {
			reqs[i].Regulations = []string{}
		}
		if reqs[i].NormalizedActors == nil {
			reqs[i].NormalizedActors = []string{}
		}
		if reqs[i].NormalizedActions == nil {
			reqs[i].NormalizedActions = []string{}
		}
	}
	return reqs, nil
}

func writeMarkdown(path string, report model.CoverageReport) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create markdown: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close markdown: %w", closeErr)
		}
	}()

	if err := coverage.RenderMarkdown(f, report); err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}
	return nil
}
