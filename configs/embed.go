// Package configs provides embedded assets for codexkeep.
//
// Assets are embedded at build time using Go's //go:embed directive so they
// are available in every distribution: source builds, binary releases, and
// package-manager installs.
//
// Files:
//   - default-template.yaml: the built-in "chronicle" template registered
//     when no custom template is configured.
//   - config.example.yaml: the annotated vault config written by
//     `codexkeep init`.
package configs

import _ "embed"

// DefaultTemplate is the built-in chronicle template definition.
// Registered by pkg/codex at startup; active unless the vault config
// names another template.
//
//go:embed default-template.yaml
var DefaultTemplate []byte

// ConfigTemplate is the annotated vault configuration example.
// Created by: `codexkeep init` at .codexkeep.yaml in the vault root.
//
//go:embed config.example.yaml
var ConfigTemplate string
