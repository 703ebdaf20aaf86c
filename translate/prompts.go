package translate

import (
	"fmt"
	"strings"

	"github.com/poiesic/ragquery/core"
	"github.com/tmc/langchaingo/prompts"
)

var (
	perspectivesPrompt = prompts.NewPromptTemplate(
		`You are an AI language model assistant. Your task is to generate {{.count}} different versions of the given user question to retrieve relevant documents from a vector database. By generating multiple perspectives on the user question, your goal is to help the user overcome some of the limitations of the distance-based similarity search.
Provide these alternative questions separated by newlines, one per line, without numbering or commentary.
Original question: {{.question}}`,
		[]string{"count", "question"},
	)

	searchQueriesPrompt = prompts.NewPromptTemplate(
		`You are a helpful assistant that generates multiple search queries based on a single input query.
Generate multiple search queries related to: {{.question}}
Write one query per line, without numbering or commentary.
Output ({{.count}} queries):`,
		[]string{"count", "question"},
	)

	decompositionPrompt = prompts.NewPromptTemplate(
		`You are a helpful assistant that generates multiple sub-questions related to an input question.
The goal is to break down the input into a set of sub-problems / sub-questions that can be answered in isolation.
Order them from the simplest to the most complex, one per line, without numbering or commentary.
Generate multiple search queries related to: {{.question}}
Output ({{.count}} queries):`,
		[]string{"count", "question"},
	)

	answerPrompt = prompts.NewPromptTemplate(
		`Answer the following question based on this context:

{{.context}}

Question: {{.question}}`,
		[]string{"context", "question"},
	)

	stepPrompt = prompts.NewPromptTemplate(
		`Here is the question you need to answer:

---
{{.question}}
---

Here is any available background question + answer pairs:

---
{{.qa_pairs}}
---

Here is additional context relevant to the question:

---
{{.context}}
---

Use the above context and any background question + answer pairs to answer the question:
{{.question}}`,
		[]string{"question", "qa_pairs", "context"},
	)

	synthesisPrompt = prompts.NewPromptTemplate(
		`Here is a set of Q+A pairs:

{{.context}}

Use these to synthesize an answer to the question: {{.question}}`,
		[]string{"context", "question"},
	)
)

func render(tmpl prompts.PromptTemplate, values map[string]any) (string, error) {
	prompt, err := tmpl.Format(values)
	if err != nil {
		return "", fmt.Errorf("%w: rendering prompt: %w", ErrGeneration, err)
	}
	return prompt, nil
}

// formatDocuments joins fragment contents for use as prompt context.
func formatDocuments(docs []core.DocumentRef) string {
	parts := make([]string, len(docs))
	for i, doc := range docs {
		parts[i] = doc.Content
	}
	return strings.Join(parts, "\n\n")
}

// formatBackground renders prior pairs for a decomposition step.
func formatBackground(chain []core.QAPair) string {
	parts := make([]string, len(chain))
	for i, pair := range chain {
		parts[i] = fmt.Sprintf("Question: %s\nAnswer: %s", pair.Question, pair.Answer)
	}
	return strings.Join(parts, "\n\n")
}

// formatChain renders the full numbered chain for final synthesis.
func formatChain(chain []core.QAPair) string {
	parts := make([]string, len(chain))
	for i, pair := range chain {
		parts[i] = fmt.Sprintf("Question %d: %s\nAnswer %d: %s", i+1, pair.Question, i+1, pair.Answer)
	}
	return strings.Join(parts, "\n\n")
}
