// Package llm defines the language model oracle used by the NL adapter.
//
// An Oracle turns a chat request into reply text. Providers:
//
//   - OpenAI: the OpenAI chat completions API, or any compatible endpoint
//     (a local Ollama, vLLM) selected through BaseURL.
//   - Gemini: Google's Gemini API.
//   - Scripted: canned replies, used by tests and offline replay.
//
// New picks a provider from Options. Oracles are safe for concurrent use.
package llm
