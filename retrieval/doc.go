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


// Package retrieval turns a query string into a ranked list of document fragments.
//
// Retriever is the seam the query-translation strategies depend on. The
// VectorRetriever implementation embeds the query, runs a similarity search
// over the chunk index and returns the top-k fragments, most similar first.
// Query embeddings are kept in an LRU cache because fan-out strategies often
// ask for the same variant more than once.
package retrieval
