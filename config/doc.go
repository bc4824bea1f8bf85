// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package config provides configuration loading for the gateway: catalog
location, cache/retry/budget tunables, per-provider transport overrides,
logging, and telemetry. Configuration merges as
"defaults -> YAML file -> environment variables".

# Core types

  - Config: the top-level configuration aggregate (Gateway, Providers,
    Log, Telemetry).
  - Loader: builder-pattern loader — chain WithConfigPath/WithEnvPrefix/
    WithValidator then Load.
  - HotReloadManager: watches the config file and applies changes
    without a restart where safe, recording every change in an audit
    log. It does not watch the model catalog; catalog.Source does that.
  - FileWatcher: polling + debounce file-change notifier used by
    HotReloadManager.

# Usage

	cfg, err := config.NewLoader().
		WithConfigPath("gateway.yaml").
		WithEnvPrefix("AGENTGW").
		Load()
*/
package config
