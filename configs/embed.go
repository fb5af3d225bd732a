// Package configs provides the embedded configuration template for docsift.
//
// The template is embedded at build time with go:embed so it ships inside
// every distribution of the binary. `docsift config init` writes it to disk;
// see internal/config for the load order (defaults, file, DOCSIFT_* env).
//
// To change the template, edit config.example.yaml and rebuild.
package configs

import _ "embed"

// ConfigTemplate is the annotated example configuration written by
// `docsift config init`. Every value in it matches the built-in defaults.
//
//go:embed config.example.yaml
var ConfigTemplate string
