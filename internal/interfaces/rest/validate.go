package rest

import (
	"net/http"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"

	"github.com/FreePeak/golang-mcp-multiplexer/internal/config"
)

const problemContentType = "application/problem+json"

// ProblemDetail describes one rejected configuration parameter
type ProblemDetail struct {
	Param    string      `json:"param"`
	Pointer  string      `json:"pointer"`
	Reason   string      `json:"reason"`
	Received interface{} `json:"received,omitempty"`
}

// Problem is the RFC 7807 body returned when session config is rejected
type Problem struct {
	Type         string                 `json:"type"`
	Title        string                 `json:"title"`
	Status       int                    `json:"status"`
	Detail       string                 `json:"detail"`
	Instance     string                 `json:"instance"`
	ConfigSchema map[string]interface{} `json:"configSchema"`
	Errors       []ProblemDetail        `json:"errors"`
	Help         string                 `json:"help"`
}

type configError struct {
	problem Problem
}

func (e *configError) Error() string {
	return e.problem.Detail
}

type configValidator struct {
	raw    map[string]interface{}
	schema *gojsonschema.Schema
}

func newConfigValidator(schema map[string]interface{}) (*configValidator, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
	if err != nil {
		return nil, errors.Wrap(err, "invalid config schema")
	}
	return &configValidator{raw: schema, schema: compiled}, nil
}

func (v *configValidator) validate(cfg map[string]interface{}) error {
	result, err := v.schema.Validate(gojsonschema.NewGoLoader(cfg))
	if err != nil {
		return errors.Wrap(err, "error validating config")
	}
	if result.Valid() {
		return nil
	}

	details := make([]ProblemDetail, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		param := fieldPath(e)
		details = append(details, ProblemDetail{
			Param:    param,
			Pointer:  "/" + strings.ReplaceAll(param, ".", "/"),
			Reason:   e.Description(),
			Received: e.Value(),
		})
	}
	sort.Slice(details, func(i, j int) bool {
		return details[i].Param < details[j].Param
	})

	return &configError{problem: Problem{
		Type:         "about:blank",
		Title:        "Invalid configuration parameters",
		Status:       http.StatusUnprocessableEntity,
		Detail:       "One or more config parameters are invalid.",
		Instance:     EndpointMCP,
		ConfigSchema: v.raw,
		Errors:       details,
		Help:         "Pass config as dot-notation query parameters, for example ?" + config.ParamProfile + "=default&server.timeout=30. See " + EndpointWellKnown,
	}}
}

// fieldPath names the offending parameter. Missing required properties are
// reported against the property itself rather than its parent.
func fieldPath(e gojsonschema.ResultError) string {
	field := e.Field()
	if field == "(root)" {
		field = ""
	}
	if e.Type() == "required" {
		if property, ok := e.Details()["property"].(string); ok {
			if field == "" {
				return property
			}
			return field + "." + property
		}
	}
	return field
}

func writeProblem(w http.ResponseWriter, problem Problem) {
	writeJSON(w, problem.Status, problemContentType, problem)
}
