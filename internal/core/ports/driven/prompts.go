package driven

// PromptStore resolves prompt templates by name. A name with no override
// on disk resolves to its built-in default.
type PromptStore interface {
	Load(name string) (string, error)

	// Reload drops cached templates.
	Reload()
}

// PromptAnswer names the grounded answer template. It takes two %s verbs:
// the numbered context blocks, then the question.
const PromptAnswer = "answer"

// DefaultAnswerPrompt is the built-in answer template.
const DefaultAnswerPrompt = `Answer the question using only the documents below.

[Documents]
%s

[Question]
%s

[Rules]
1. Use only the content of the documents above.
2. Do not answer with anything the documents do not contain.
3. Always name your source, for example "According to the leave policy document..." or "[Document 1]".
4. Keep the answer to three to five sentences.

[Answer]
`
