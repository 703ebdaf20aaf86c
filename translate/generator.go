package translate

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/poiesic/ragquery/ai"
	"github.com/tmc/langchaingo/prompts"
)

// listMarker matches numbering and bullets a model puts in front of list items.
// A numbered marker may run straight into the item ("1.What"); the captured
// letter is put back. "3.5 release" is not a marker.
var listMarker = regexp.MustCompile(`^(?:\(?\d{1,3}[.):](?:\s+|$|(\pL))|[-*•](?:\s+|$))`)

// lineGenerator asks the model for a newline-separated list and parses it.
type lineGenerator struct {
	generator ai.Generator
	template  prompts.PromptTemplate
	noun      string
	logger    *slog.Logger
}

func newLineGenerator(generator ai.Generator, template prompts.PromptTemplate, noun string) (lineGenerator, error) {
	if generator == nil {
		return lineGenerator{}, fmt.Errorf("%w: generator is required", ErrConfiguration)
	}
	return lineGenerator{
		generator: generator,
		template:  template,
		noun:      noun,
		logger:    slog.Default().With("component", "translate"),
	}, nil
}

// generate returns exactly count non-empty lines in model order, or fails.
// Extra lines are dropped; duplicates are kept.
func (g lineGenerator) generate(ctx context.Context, query string, count int) ([]string, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: number of %s must be at least 1, got %d", ErrConfiguration, g.noun, count)
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is empty", ErrConfiguration)
	}

	prompt, err := render(g.template, map[string]any{
		"count":    count,
		"question": query,
	})
	if err != nil {
		return nil, err
	}

	text, err := g.generator.GenerateText(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: generating %s: %w", ErrGeneration, g.noun, err)
	}

	lines := parseLines(text)
	if len(lines) < count {
		g.logger.Warn("model returned too few lines", "kind", g.noun, "want", count, "got", len(lines))
		return nil, fmt.Errorf("%w: expected %d %s, model returned %d", ErrGeneration, count, g.noun, len(lines))
	}
	if len(lines) > count {
		g.logger.Debug("dropping extra lines", "kind", g.noun, "want", count, "got", len(lines))
	}
	return lines[:count], nil
}

// parseLines splits model output into list items, stripping list markers and
// surrounding quotes. Blank lines, bare markers and lead-in lines ending in a
// colon ("Here are 3 questions:") are dropped.
func parseLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = listMarker.ReplaceAllString(line, "${1}")
		line = strings.TrimSpace(unquote(line))
		if line == "" || strings.HasSuffix(line, ":") {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func unquote(s string) string {
	pairs := [][2]string{{`"`, `"`}, {`'`, `'`}, {"“", "”"}, {"`", "`"}}
	for _, p := range pairs {
		if len(s) >= len(p[0])+len(p[1]) && strings.HasPrefix(s, p[0]) && strings.HasSuffix(s, p[1]) {
			return s[len(p[0]) : len(s)-len(p[1])]
		}
	}
	return s
}

// QueryGenerator rewrites one query into several variants with a single
// generation call.
type QueryGenerator struct {
	lines lineGenerator
}

// NewQueryGenerator creates a generator that asks for related search queries.
func NewQueryGenerator(generator ai.Generator) (*QueryGenerator, error) {
	lines, err := newLineGenerator(generator, searchQueriesPrompt, "queries")
	if err != nil {
		return nil, err
	}
	return &QueryGenerator{lines: lines}, nil
}

// NewPerspectiveGenerator creates a generator that asks for rephrasings of the
// question from different perspectives.
func NewPerspectiveGenerator(generator ai.Generator) (*QueryGenerator, error) {
	lines, err := newLineGenerator(generator, perspectivesPrompt, "queries")
	if err != nil {
		return nil, err
	}
	return &QueryGenerator{lines: lines}, nil
}

// Generate returns exactly count query variants, or fails with ErrGeneration.
// A count below one or a blank query fails with ErrConfiguration.
// Variants are not deduplicated.
func (g *QueryGenerator) Generate(ctx context.Context, query string, count int) ([]string, error) {
	return g.lines.generate(ctx, query, count)
}

// QueryDecomposer splits a complex query into sub-questions ordered from
// simplest to most complex.
type QueryDecomposer struct {
	lines lineGenerator
}

// NewQueryDecomposer creates a decomposer backed by generator.
func NewQueryDecomposer(generator ai.Generator) (*QueryDecomposer, error) {
	lines, err := newLineGenerator(generator, decompositionPrompt, "sub-questions")
	if err != nil {
		return nil, err
	}
	return &QueryDecomposer{lines: lines}, nil
}

// Decompose returns exactly count sub-questions in the order the model produced them.
// Failure contract matches QueryGenerator.Generate.
func (d *QueryDecomposer) Decompose(ctx context.Context, query string, count int) ([]string, error) {
	return d.lines.generate(ctx, query, count)
}
