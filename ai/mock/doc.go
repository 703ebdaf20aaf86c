// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.Embedder, ai.Generator,
// and ai.AIProvider for use in unit tests. The mocks let tests run without
// a model server and are safe for concurrent use.
//
// # Usage in Tests
//
//	provider := mock.NewMockProvider()
//	gen := provider.(*mock.MockProvider).GetMockGenerator()
//	gen.GenerateTextFunc = func(ctx context.Context, prompt string) (string, error) {
//	    return "first\nsecond\nthird", nil
//	}
//
//	// Inspect what was sent
//	prompts := gen.Prompts()
//
// # Default Behavior
//
//   - MockEmbedder: Returns deterministic unit vectors based on text hash
//   - MockGenerator: Echoes the prompt with a "response to: " prefix
//   - MockProvider: Aggregates mock embedder and generator
package mock
