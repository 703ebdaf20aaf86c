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


// Package translate rewrites a user query before retrieval and turns the
// results into an answer.
//
// Three methods are supported:
//
//   - multi_query: generate several rephrasings, retrieve for each
//     concurrently, answer from the unique union of fragments
//   - fusion: generate search queries, retrieve for each concurrently and
//     merge the ranked lists with Reciprocal Rank Fusion (Fuse)
//   - decomposition: split the query into sub-questions ordered from
//     simplest to hardest and solve them one after another, each step seeing
//     the answers before it (SequentialSolver)
//
// A Dispatcher selects the method by name:
//
//	d, err := translate.NewDispatcher(retriever, generator)
//	if err != nil {
//	    return err
//	}
//	defer d.Release()
//
//	answer, err := d.Run(ctx, "fusion", "What is task decomposition for LLM agents?")
//
// # Errors
//
// Every failure is tagged with one of ErrGeneration, ErrRetrieval,
// ErrConfiguration or ErrChainAborted and can be tested with errors.Is.
// A failed concurrent retrieval is reported as *VariantError and a failed
// decomposition step as *StepError, both carrying the failing index.
// Nothing is retried here; retries belong to the ai.Generator implementation.
package translate
