// Package llm contains adapters for invoking large language models. It
// abstracts away provider-specific APIs behind a single text-generation
// interface so the agent and supervisor stay independent of the remote
// service actually used.
package llm
