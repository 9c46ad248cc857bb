// Package apidocs ships the OpenAPI document with the binary.
package apidocs

import _ "embed"

//go:embed openapi.yaml
var OpenAPI []byte
