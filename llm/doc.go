// Package llm provides a provider-neutral abstraction layer for Large Language Model (LLM) APIs.
//
// This package defines common types, interfaces, and utilities that allow the codebase
// to work with multiple LLM providers (OpenAI, Anthropic, Gemini, Ollama) without being
// tightly coupled to any specific provider's SDK.
//
// # Core Concepts
//
//  1. Messages: The Message type represents one conversational turn with a role
//     (system, user, assistant, function) and an ordered list of Parts (text, image,
//     function_call, function_result, function_result_image). Sugar constructors and
//     accessors cover the common single-part shapes.
//
//  2. Tools: The ToolSpec type represents a function definition that can be provided
//     to an LLM; FunctionCall carries an invocation the model requested.
//
//  3. Client Interface: the Client interface provides Fetch() for one blocking
//     request/response round trip. Implementations handle provider-specific wire
//     shapes, history repair, turn merging, and cache hints internally.
//
//  4. History helpers: InsertMissingResults answers dangling function calls with
//     synthetic empty results; MergeTurns collapses consecutive same-role turns for
//     vendors that require strict role alternation.
//
//  5. Middleware: the Middleware interface allows adding cross-cutting concerns like
//     logging without modifying provider implementations; WithRetry layers bounded
//     randomized exponential backoff over any Client.
//
//  6. Errors: the Error type provides provider-neutral error handling: rate limits,
//     context-length overflows, quota exhaustion, unparseable function-call payloads,
//     and transient provider failures.
//
// # Usage Example
//
//	// Create a provider-specific client (e.g., OpenAI)
//	client := openai.New(cfg)
//
//	// Wrap with logging middleware and retry
//	client = llm.WrapWithMiddleware(client, llm.NewRoundTripLogger(logger))
//	client = llm.WithRetry(client, llm.DefaultRetryPolicy(), logger)
//
//	// Make a request
//	req := &llm.Request{
//	    Model: "gpt-4o",
//	    Messages: []llm.Message{
//	        llm.NewTextMessage(llm.RoleUser, "Hello!"),
//	    },
//	}
//
//	resp, err := client.Fetch(ctx, req)
//
// # Extension Points
//
// To add a new LLM provider:
//  1. Implement the Client interface
//  2. Translate between provider-specific types and llm package types
//  3. Handle provider-specific errors and translate to llm.Error types
package llm
