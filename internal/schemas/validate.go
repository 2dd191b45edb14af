// Package schemas provides JSON Schema validation for the session record
// wire format. The schema is applied at the store boundary so nothing
// loosely shaped is ever written to or read back from durable storage.
package schemas

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/jonathan/cvperfect-sessions/internal/session"
)

// SessionRecordSchema is the authoritative schema for persisted session
// records. The copy under schemas/session_record.schema.json exists for
// external tooling; TestSessionRecordSchema_MatchesFile keeps them in sync.
const SessionRecordSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "SessionRecord",
  "type": "object",
  "required": ["session_id", "resume_text", "email", "plan", "created_at", "payment_status"],
  "additionalProperties": false,
  "properties": {
    "session_id": {
      "type": "string",
      "minLength": 1
    },
    "resume_text": {
      "type": "string",
      "minLength": 1
    },
    "job_posting": {
      "type": ["string", "null"]
    },
    "email": {
      "type": "string",
      "format": "email",
      "minLength": 3
    },
    "plan": {
      "type": "string",
      "enum": ["basic", "gold", "premium"]
    },
    "template": {
      "type": "string"
    },
    "photo": {
      "type": ["string", "null"]
    },
    "created_at": {
      "type": "string",
      "format": "date-time"
    },
    "payment_status": {
      "type": "string",
      "enum": ["pending", "completed", "failed"]
    }
  }
}`

// ValidationError represents a schema validation failure with field paths.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation error at a specific field.
type FieldError struct {
	Field   string
	Message string
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("schema validation failed:\n")
	for i, err := range ve.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	return sb.String()
}

// Unwrap lets callers match the schema failure against the session
// validation sentinel.
func (ve *ValidationError) Unwrap() error {
	if len(ve.Errors) > 0 {
		return &session.ValidationError{Field: ve.Errors[0].Field, Message: ve.Errors[0].Message}
	}
	return nil
}

var schemaLoader = gojsonschema.NewStringLoader(SessionRecordSchema)

// ValidateSessionRecord validates a marshaled session record against the
// schema. A nil return means the document conforms.
func ValidateSessionRecord(doc []byte) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("failed to run schema validation: %w", err)
	}
	if result.Valid() {
		return nil
	}

	verr := &ValidationError{Errors: make([]FieldError, 0, len(result.Errors()))}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		verr.Errors = append(verr.Errors, FieldError{Field: field, Message: desc.Description()})
	}
	return verr
}
