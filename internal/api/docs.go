package api

import (
    "context"
    _ "embed"
    "fmt"
    "net/http"
    "sync"

    "github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi/openapi.yaml
var openAPIYAML []byte

var (
    openAPIOnce sync.Once
    openAPIDoc  *openapi3.T
    openAPIErr  error
)

// LoadOpenAPI parses and validates the embedded OpenAPI document once.
func LoadOpenAPI(ctx context.Context) (*openapi3.T, error) {
    openAPIOnce.Do(func() {
        doc, err := openapi3.NewLoader().LoadFromData(openAPIYAML)
        if err != nil { openAPIErr = fmt.Errorf("openapi: load: %w", err); return }
        if err := doc.Validate(ctx); err != nil { openAPIErr = fmt.Errorf("openapi: validate: %w", err); return }
        openAPIDoc = doc
    })
    return openAPIDoc, openAPIErr
}

// OpenAPIHandler serves the OpenAPI document as YAML, or JSON for /openapi.json
func (s *Server) OpenAPIHandler(w http.ResponseWriter, r *http.Request) {
    doc, err := LoadOpenAPI(r.Context())
    if err != nil { writeProblem(w, 500, "OpenAPI not available", err.Error(), r.URL.Path); return }
    if r.URL.Path == "/openapi.json" {
        b, err := doc.MarshalJSON()
        if err != nil { writeProblem(w, 500, "OpenAPI encode failed", err.Error(), r.URL.Path); return }
        w.Header().Set("Content-Type", "application/json")
        _, _ = w.Write(b)
        return
    }
    w.Header().Set("Content-Type", "application/yaml")
    w.WriteHeader(200)
    _, _ = w.Write(openAPIYAML)
}

// DocsHandler serves a minimal ReDoc page referencing /openapi.yaml
func (s *Server) DocsHandler(w http.ResponseWriter, r *http.Request) {
    w.Header().Set("Content-Type", "text/html; charset=utf-8")
    w.WriteHeader(200)
    _, _ = w.Write([]byte(`<!DOCTYPE html><html><head><title>cargoplan API</title>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <script src="https://cdn.jsdelivr.net/npm/redoc@next/bundles/redoc.standalone.js"></script>
    </head><body>
    <redoc spec-url="/openapi.yaml"></redoc>
    </body></html>`))
}
