// Package provider defines the capability contracts the engine depends on:
// text generation ([Generator]) and text embedding ([Embedder]).
//
// Concrete backends live in sub-packages: mock provides deterministic
// placeholder implementations, openaicompat talks to any OpenAI-compatible
// server (vLLM, llama.cpp, Ollama, LiteLLM).
package provider
