package rest

import (
	"net/http"
)

const (
	schemaDraft          = "https://json-schema.org/draft/2020-12/schema"
	schemaContentType    = "application/schema+json; charset=utf-8"
	wellKnownCacheHeader = "no-cache, no-store, must-revalidate"
)

// ConfigSchemaDocument returns the schema published for clients, built from
// the configured session schema or an empty object schema
func (c *Coordinator) ConfigSchemaDocument(r *http.Request) map[string]interface{} {
	doc := map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
		"required":   []interface{}{},
	}
	for k, v := range c.configSchema {
		doc[k] = v
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if forwarded := r.Header.Get("X-Forwarded-Proto"); forwarded != "" {
		scheme = forwarded
	}

	doc["$schema"] = schemaDraft
	doc["$id"] = scheme + "://" + r.Host + EndpointWellKnown
	doc["title"] = "MCP Session Configuration"
	doc["description"] = "Schema for the " + EndpointMCP + " endpoint configuration"
	doc["x-mcp-version"] = "1.0"
	doc["x-query-style"] = "dot+bracket"
	return doc
}

func (c *Coordinator) handleWellKnown(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", wellKnownCacheHeader)
	writeJSON(w, http.StatusOK, schemaContentType, c.ConfigSchemaDocument(r))
}
