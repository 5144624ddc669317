// Package driven lists what the core needs from infrastructure. Indexing
// uses Parser, Chunker, EmbeddingService, VectorIndex and MetadataStore.
// Answering adds LLMService, PromptStore and HistoryStore. A nil
// HistoryStore disables history; a nil PromptStore means built-in prompts.
//
// Implementations live under internal/adapters, internal/normalisers and
// internal/postprocessors. This package imports only domain.
package driven
