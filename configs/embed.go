// Package configs provides embedded configuration templates for amanrdf.
//
// Templates are embedded at build time and used by:
//   - `amanrdf config init` → amanrdf.yaml in the working directory
//   - `amanrdf config init --user` → ~/.config/amanrdf/config.yaml
//
// Configuration hierarchy (see internal/config Load()):
//  1. Hardcoded defaults
//  2. User config (~/.config/amanrdf/config.yaml)
//  3. Project config (amanrdf.yaml or --config)
//  4. Environment variables (AMANRDF_*)
package configs

import _ "embed"

// UserConfigTemplate holds machine-level settings: backend location,
// remote limits and logging.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// ProjectConfigTemplate holds a dataset's indexing settings: data root,
// index names and extension fields.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string

// LegacyConfigTemplate is the tab-separated format read from .tsv, .conf
// and .config files.
//
//go:embed legacy-config.example.tsv
var LegacyConfigTemplate string
