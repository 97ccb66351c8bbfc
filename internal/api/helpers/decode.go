package helpers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// DecodeJSON decodes a request body into v, rejecting unknown fields so a
// mistyped payload fails loudly instead of being half-applied.
//
// An empty body returns io.EOF; callers whose body is optional treat that as
// absence.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}
