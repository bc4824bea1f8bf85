// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package catalog is the gateway's model registry: pricing, context
windows, capabilities, and deprecation for every (provider, model) pair
the router, cost accountant, and request validator consult.

The catalog is loaded from a JSON document (see Document) at startup
and optionally reloaded via Source.Watch, which watches the file's
directory with fsnotify and falls back to mtime polling only when that
watch cannot be established. Replacement of
the in-memory table is atomic and fail-closed — a document that fails
validation never displaces a good snapshot, and the rejection is
reported through Catalog.OnLoadError.
*/
package catalog
