// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

// Package respcache implements the gateway's in-process response cache
// described in the request core's caching component: bounded size,
// TTL expiry, least-recently-read eviction on size pressure.
package respcache
