// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

// Package router selects an ordered candidate chain of (provider, model)
// pairs for a request under a chosen strategy (cost, quality, latency,
// or hybrid) and a set of constraints, consulting the catalog for
// pricing, capability, and deprecation data.
package router
