// Package configs embeds the orchestrator's default configuration
// documents so the binary has a working envelope registry with no
// external file present at runtime.
package configs

import _ "embed"

//go:embed envelopes.yaml
var DefaultEnvelopes []byte
