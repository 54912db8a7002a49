// Package configs provides the embedded configuration template.
//
// The template is embedded at build time with //go:embed so it ships in
// every distribution, source builds included. `ragmcp init` writes it as
// the starting ragmcp.yaml.
package configs

import _ "embed"

// ConfigTemplate is the annotated example configuration. Every key matches
// the defaults in internal/config.
//
//go:embed ragmcp.example.yaml
var ConfigTemplate string
