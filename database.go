// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ragquery

import (
	"context"
	"io"
	"log/slog"

	"github.com/poiesic/ragquery/ai"
	"github.com/poiesic/ragquery/ai/openai"
	"github.com/poiesic/ragquery/ingestion"
	"github.com/poiesic/ragquery/reembed"
	"github.com/poiesic/ragquery/retrieval"
	"github.com/poiesic/ragquery/storage"
	"github.com/poiesic/ragquery/storage/badger"
	"github.com/poiesic/ragquery/translate"
)

// Database ties the chunk index to the AI services that fill and query it.
type Database struct {
	backend   *badger.Backend
	chunkRepo storage.ChunkRepository
	provider  ai.AIProvider
	logger    *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	aiConfig *ai.Config
	provider ai.AIProvider
	inMemory bool
}

// WithAIConfig sets the configuration for the OpenAI-compatible provider.
func WithAIConfig(cfg *ai.Config) DatabaseOption {
	return func(o *databaseOptions) {
		o.aiConfig = cfg
	}
}

// WithAIProvider uses provider instead of building one from the AI config.
// The database takes ownership and closes it.
func WithAIProvider(provider ai.AIProvider) DatabaseOption {
	return func(o *databaseOptions) {
		o.provider = provider
	}
}

// WithInMemory keeps the index in memory; the path is ignored.
func WithInMemory() DatabaseOption {
	return func(o *databaseOptions) {
		o.inMemory = true
	}
}

func NewDatabase(filePath string, opts ...DatabaseOption) (*Database, error) {
	options := &databaseOptions{
		aiConfig: ai.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	chunkRepo, err := badger.NewChunkRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			chunkRepo.Close()
			backend.Close()
			return nil, err
		}
	}

	return &Database{
		backend:   backend,
		chunkRepo: chunkRepo,
		provider:  provider,
		logger:    slog.Default(),
	}, nil
}

func (db *Database) Close() error {
	if err := db.provider.Close(); err != nil {
		db.logger.Error("error closing AI provider", "err", err)
	}

	if err := db.chunkRepo.Close(); err != nil {
		db.logger.Error("error closing chunk repository", "err", err)
		return err
	}

	if err := db.backend.Close(); err != nil {
		db.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

func (db *Database) ChunkRepository() storage.ChunkRepository {
	return db.chunkRepo
}

func (db *Database) NewLoader(opts ...ingestion.Option) (*ingestion.Loader, error) {
	return ingestion.NewLoader(db.chunkRepo, db.provider.Embedder(), opts...)
}

func (db *Database) NewRetriever(opts ...retrieval.Option) (*retrieval.VectorRetriever, error) {
	return retrieval.NewVectorRetriever(db.chunkRepo, db.provider.Embedder(), opts...)
}

func (db *Database) NewReembedder(config *reembed.Config, progress io.Writer) *reembed.Reembedder {
	return reembed.NewReembedder(db.chunkRepo, db.provider.Embedder(), config, progress)
}

// NewDispatcher returns a dispatcher answering from retriever with the
// database's generator. Call Release on it when done.
func (db *Database) NewDispatcher(retriever retrieval.Retriever, opts ...translate.Option) (*translate.Dispatcher, error) {
	return translate.NewDispatcher(retriever, db.provider.Generator(), opts...)
}

// Ask answers query with method over the chunks already indexed, using
// default retrieval and dispatcher settings.
func (db *Database) Ask(ctx context.Context, method, query string) (string, error) {
	retriever, err := db.NewRetriever()
	if err != nil {
		return "", err
	}
	dispatcher, err := db.NewDispatcher(retriever)
	if err != nil {
		return "", err
	}
	defer dispatcher.Release()
	return dispatcher.Run(ctx, method, query)
}
