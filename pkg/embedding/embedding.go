// Package embedding models the external embedding collaborator of spec §1:
// "LLM/embedding HTTP clients (treat as a text -> Vec<f32> service)". Only
// the interface contract is defined here; any HTTP implementation is out of
// scope.
//
// Grounded on _examples/original_source/src/embed/client.rs's
// text-in/vector-out contract and the teacher's pkg/embed/embed_queue.go
// bounded-queue dispatch idiom.
package embedding

import "context"

// Service turns text into a vector embedding. Implementations talk to an
// external model provider (OpenAI, Ollama, Gemini, Azure OpenAI, Anthropic
// — see pkg/tenancy.LLMProvider); none is implemented here.
type Service interface {
	Embed(ctx context.Context, model string, text string) ([]float32, error)
}

// NoopService is a Service that always fails; useful as a safe default when
// no tenant has configured an embedding provider, so pkg/indexbus can call
// Embed unconditionally and just log-and-swallow the error per spec §7.
type NoopService struct{}

func (NoopService) Embed(ctx context.Context, model string, text string) ([]float32, error) {
	return nil, ErrNoProvider
}

var ErrNoProvider = errNoProvider{}

type errNoProvider struct{}

func (errNoProvider) Error() string { return "embedding: no provider configured" }
