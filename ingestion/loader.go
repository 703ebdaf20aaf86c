package ingestion

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	"github.com/poiesic/ragquery/ai"
	"github.com/poiesic/ragquery/core"
	"github.com/poiesic/ragquery/storage"
	"github.com/tmc/langchaingo/textsplitter"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultChunkSize is the maximum chunk length, measured by the loader's
	// length function (characters unless WithTokenEncoding is used).
	DefaultChunkSize = 300

	// DefaultChunkOverlap is the length shared by neighbouring chunks.
	DefaultChunkOverlap = 50

	// DefaultTokenEncoding is the tiktoken encoding the CLI measures chunks in.
	DefaultTokenEncoding = "cl100k_base"

	// DefaultBatchSize is the number of chunks sent per embedding call.
	DefaultBatchSize = 32

	// DefaultConcurrency is the number of embedding calls in flight.
	DefaultConcurrency = 4

	maxDocumentBytes = 16 << 20
)

// Result summarizes one load.
type Result struct {
	Source  string
	Chunks  int // chunks produced by splitting
	Added   int // chunks newly stored
	Skipped int // chunks already present
	Removed int // stale chunks dropped in replace mode
}

// Loader fetches documents and indexes them as embedded chunks.
type Loader struct {
	repository   storage.ChunkRepository
	embedder     ai.Embedder
	client       *http.Client
	selector     string
	chunkSize    int
	chunkOverlap int
	lengthFunc   func(string) int
	batchSize    int
	concurrency  int
	replace      bool
	progress     io.Writer
	logger       *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader) error

// WithSelector sets the CSS selector for the elements whose text is indexed.
// An empty selector indexes the whole page. Default is DefaultSelector.
func WithSelector(selector string) Option {
	return func(l *Loader) error {
		l.selector = selector
		return nil
	}
}

// WithChunking sets chunk size and overlap, in the units of the length function.
func WithChunking(size, overlap int) Option {
	return func(l *Loader) error {
		if size < 1 || overlap < 0 || overlap >= size {
			return fmt.Errorf("%w: size %d, overlap %d", ErrInvalidChunking, size, overlap)
		}
		l.chunkSize = size
		l.chunkOverlap = overlap
		return nil
	}
}

// WithLengthFunc sets how chunk length is measured. Default counts runes.
func WithLengthFunc(fn func(string) int) Option {
	return func(l *Loader) error {
		if fn == nil {
			return fmt.Errorf("length function cannot be nil")
		}
		l.lengthFunc = fn
		return nil
	}
}

// WithTokenEncoding measures chunk length in tokens of the named tiktoken
// encoding (for example "cl100k_base"). Encoding tables are fetched and cached
// by tiktoken-go on first use.
func WithTokenEncoding(name string) Option {
	return func(l *Loader) error {
		encoding, err := tiktoken.GetEncoding(name)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrTokenizer, err)
		}
		l.lengthFunc = func(text string) int {
			return len(encoding.EncodeOrdinary(text))
		}
		return nil
	}
}

// WithBatchSize sets the number of chunks per embedding call.
func WithBatchSize(size int) Option {
	return func(l *Loader) error {
		if size < 1 {
			size = 1
		}
		l.batchSize = size
		return nil
	}
}

// WithConcurrency sets how many embedding calls may run at once.
func WithConcurrency(n int) Option {
	return func(l *Loader) error {
		if n < 1 {
			n = 1
		}
		l.concurrency = n
		return nil
	}
}

// WithReplace makes a load replace the source's previously indexed version:
// chunks of the source that are not in the new split are removed. Chunks that
// survive keep their vectors and are not embedded again.
func WithReplace(replace bool) Option {
	return func(l *Loader) error {
		l.replace = replace
		return nil
	}
}

// WithHTTPClient sets the client used to fetch documents.
// Default is a client with a 30 second timeout.
func WithHTTPClient(client *http.Client) Option {
	return func(l *Loader) error {
		if client == nil {
			return fmt.Errorf("http client cannot be nil")
		}
		l.client = client
		return nil
	}
}

// WithProgress writes embedding progress to w.
func WithProgress(w io.Writer) Option {
	return func(l *Loader) error {
		l.progress = w
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) error {
		if logger == nil {
			logger = slog.Default()
		}
		l.logger = logger.With("component", "loader")
		return nil
	}
}

// NewLoader creates a loader that stores chunks in repository.
func NewLoader(repository storage.ChunkRepository, embedder ai.Embedder, opts ...Option) (*Loader, error) {
	if repository == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	l := &Loader{
		repository:   repository,
		embedder:     embedder,
		client:       &http.Client{Timeout: 30 * time.Second},
		selector:     DefaultSelector,
		chunkSize:    DefaultChunkSize,
		chunkOverlap: DefaultChunkOverlap,
		lengthFunc:   utf8.RuneCountInString,
		batchSize:    DefaultBatchSize,
		concurrency:  DefaultConcurrency,
		logger:       slog.Default().With("component", "loader"),
	}

	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, err
		}
	}

	return l, nil
}

// Load fetches url, extracts text with the configured selector and indexes it.
func (l *Loader) Load(ctx context.Context, url string) (*Result, error) {
	text, err := l.fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return l.IndexText(ctx, url, text)
}

// IndexText splits text into chunks attributed to source, embeds the ones not
// yet stored and adds them to the repository.
func (l *Loader) IndexText(ctx context.Context, source, text string) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoContent, source)
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(l.chunkSize),
		textsplitter.WithChunkOverlap(l.chunkOverlap),
		textsplitter.WithLenFunc(l.lengthFunc),
	)
	pieces, err := splitter.SplitText(text)
	if err != nil {
		return nil, err
	}

	chunks := make([]*core.Chunk, 0, len(pieces))
	for _, piece := range pieces {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		chunks = append(chunks, &core.Chunk{
			Id:       core.ChunkID(source, piece),
			Source:   source,
			Position: len(chunks),
			Content:  piece,
		})
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoContent, source)
	}

	var removed int
	if l.replace {
		if removed, err = l.dropStale(ctx, source, chunks); err != nil {
			return nil, err
		}
	}

	pending, err := l.unstored(ctx, chunks)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Source:  source,
		Chunks:  len(chunks),
		Skipped: len(chunks) - len(pending),
		Removed: removed,
	}
	if len(pending) == 0 {
		l.logger.Info("document already indexed", "source", source, "chunks", len(chunks))
		return result, nil
	}

	if err := l.embed(ctx, pending); err != nil {
		return nil, err
	}

	added, err := l.repository.AddChunks(ctx, pending...)
	if err != nil {
		return nil, err
	}
	result.Added = len(added)
	result.Skipped = len(chunks) - len(added)

	l.logger.Info("indexed document", "source", source, "chunks", result.Chunks, "added", result.Added, "removed", result.Removed)
	return result, nil
}

// dropStale removes the chunks of source that are not part of chunks and
// returns how many were dropped. When anything changed, the source is cleared
// and the surviving chunks are stored again at their new positions with their
// old vectors.
func (l *Loader) dropStale(ctx context.Context, source string, chunks []*core.Chunk) (int, error) {
	previous, err := l.repository.GetChunksBySource(ctx, source)
	if err != nil {
		return 0, err
	}

	current := make(map[core.ID]*core.Chunk, len(chunks))
	for _, chunk := range chunks {
		current[chunk.Id] = chunk
	}

	var kept []*core.Chunk
	stale, moved := 0, false
	for _, old := range previous {
		chunk, ok := current[old.Id]
		if !ok {
			stale++
			continue
		}
		moved = moved || old.Position != chunk.Position
		kept = append(kept, &core.Chunk{
			Id:         chunk.Id,
			Source:     chunk.Source,
			Position:   chunk.Position,
			Content:    chunk.Content,
			Vector:     old.Vector,
			InsertedAt: old.InsertedAt,
		})
	}
	if stale == 0 && !moved {
		return 0, nil
	}

	if _, err := l.repository.DeleteSource(ctx, source); err != nil {
		return 0, err
	}
	if len(kept) > 0 {
		if _, err := l.repository.AddChunks(ctx, kept...); err != nil {
			return 0, err
		}
	}

	l.logger.Info("dropped stale chunks", "source", source, "removed", stale, "kept", len(kept))
	return stale, nil
}

// unstored returns the chunks whose IDs are not in the repository.
func (l *Loader) unstored(ctx context.Context, chunks []*core.Chunk) ([]*core.Chunk, error) {
	ids := make([]core.ID, len(chunks))
	for i, chunk := range chunks {
		ids[i] = chunk.Id
	}

	existing, err := l.repository.GetChunks(ctx, ids...)
	if err != nil {
		return nil, err
	}

	stored := make(map[core.ID]struct{}, len(existing))
	for _, chunk := range existing {
		stored[chunk.Id] = struct{}{}
	}

	pending := make([]*core.Chunk, 0, len(chunks))
	for _, chunk := range chunks {
		if _, ok := stored[chunk.Id]; !ok {
			pending = append(pending, chunk)
		}
	}
	return pending, nil
}

// embed fills in chunk vectors, running up to concurrency batches at a time.
// The first failed batch cancels the rest.
func (l *Loader) embed(ctx context.Context, chunks []*core.Chunk) error {
	var tracker *ProgressTracker
	if l.progress != nil {
		tracker = NewProgressTracker(l.progress, len(chunks), l.batchSize)
		tracker.Start()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)

	for start := 0; start < len(chunks); start += l.batchSize {
		batch := chunks[start:min(start+l.batchSize, len(chunks))]
		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, chunk := range batch {
				texts[i] = chunk.Content
			}

			vectors, err := l.embedder.EmbedTexts(gctx, texts)
			if err != nil {
				l.logger.Error("failed to embed batch", "start", start, "size", len(batch), "err", err)
				return err
			}
			if len(vectors) != len(batch) {
				return fmt.Errorf("%w: expected %d, received %d", ai.ErrEmbeddingMismatch, len(batch), len(vectors))
			}
			for i, chunk := range batch {
				chunk.Vector = core.NormalizeVector(vectors[i])
			}

			if tracker != nil {
				tracker.Increment(len(batch))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if tracker != nil {
		tracker.Finish()
	}
	return nil
}

func (l *Loader) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	l.logger.Debug("fetching document", "url", url)
	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: %s returned %s", ErrFetchFailed, url, resp.Status)
	}

	text, err := ExtractText(io.LimitReader(resp.Body, maxDocumentBytes), l.selector)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	if text == "" {
		return "", fmt.Errorf("%w: nothing matched %q at %s", ErrNoContent, l.selector, url)
	}
	return text, nil
}
