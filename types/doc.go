// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package types holds the gateway's normalized, provider-agnostic value
types: the canonical chat-completion request/response shapes every
provider strategy translates to and from, and the closed error
taxonomy every component boundary maps its failures into.

It has zero dependencies on any other package in this module, so every
other package imports types without risk of a cycle.

# Core types

  - Message, ImageContent, ToolCall — a normalized conversation turn,
    including the cache_hint marker and inline image payload.
  - ToolSchema, ToolResult — tool-calling definitions and results.
  - Request, Usage, Response, StreamChunk, CostBreakdown, CostTerm —
    the request/response/usage/cost shapes every provider strategy and
    the cost accountant operate on.
  - Error, ErrorCode — the closed, tagged error set every component
    maps its failures into; never a free-form string at a boundary.
  - Tokenizer, EstimateTokenizer — the token-counting interface the
    router and budget gate use for prompt-size estimation, with a
    CJK-aware character-based default implementation.
*/
package types
