// Package api содержит OpenAPI-спецификацию, встраиваемую в бинарник.
package api

import _ "embed"

//go:embed openapi.json
var OpenAPISpec []byte
