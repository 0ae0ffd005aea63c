package httpapi

import (
	"errors"
	"io"

	"github.com/cellforge/idp-controlplane/internal/types"
	"github.com/gin-gonic/gin"
)

// bindBody decodes the request body into a generic map so product-specific
// parameters pass through untyped, the same way the retrieved Flask
// handlers accept an arbitrary JSON payload and let the registry validate
// only the fields it knows about. An empty body decodes to an empty map.
func bindBody(c *gin.Context) (map[string]any, error) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		return nil, &types.ValidationError{Field: "body", Message: "malformed JSON: " + err.Error()}
	}
	if body == nil {
		body = map[string]any{}
	}
	return body, nil
}

// checkForbiddenFields rejects a request body that tries to preempt a
// scheduler decision by supplying provider/region/network directly.
func checkForbiddenFields(body map[string]any) error {
	for _, f := range types.ForbiddenFields {
		if _, present := body[f]; present {
			return &types.ValidationError{Field: f, Message: "field is decided by the scheduler and may not be supplied"}
		}
	}
	return nil
}

func stringField(body map[string]any, key string) string {
	if v, ok := body[key].(string); ok {
		return v
	}
	return ""
}

func boolField(body map[string]any, key string) bool {
	if v, ok := body[key].(bool); ok {
		return v
	}
	return false
}

// requireFields returns a ValidationError naming the first missing required
// string field, or nil if all are present.
func requireFields(body map[string]any, fields ...string) error {
	for _, f := range fields {
		if stringField(body, f) == "" {
			return &types.ValidationError{Field: f, Message: "required field is missing or empty"}
		}
	}
	return nil
}
