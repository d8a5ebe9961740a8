package clients

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

type ErrorKind int

const (
	KindTransport ErrorKind = iota
	KindValidation
	KindNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	default:
		return "transport"
	}
}

// Sentinels for errors.Is matching against *APIError kinds.
var (
	ErrTransport  = errors.New("transport error")
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")

	ErrMissingID       = errors.New("part id is required")
	ErrUnknownEnvelope = errors.New("unrecognized response envelope")
)

const GenericErrorMessage = "Something went wrong. Please try again."

// APIError is the single error shape every client failure is mapped to.
// Status is 0 when no response was received.
type APIError struct {
	Kind    ErrorKind
	Status  int
	Message string
	Fields  map[string]string
	Timeout bool
	Details json.RawMessage
	Err     error
}

func (e *APIError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (%d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Fields) > 0 {
		b.WriteString(" [")
		b.WriteString(strings.Join(e.Lines(), "; "))
		b.WriteString("]")
	}
	return b.String()
}

func (e *APIError) Unwrap() error { return e.Err }

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrNotFound:
		return e.Kind == KindNotFound
	}
	return false
}

// Lines flattens field errors to sorted "field: message" strings.
func (e *APIError) Lines() []string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+": "+e.Fields[k])
	}
	return lines
}

// NewValidationError builds a validation failure that never reached the server.
func NewValidationError(fields map[string]string) *APIError {
	return &APIError{
		Kind:    KindValidation,
		Message: "Validation failed",
		Fields:  fields,
	}
}

// UserMessage aggregates an error into the text shown to operators.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return GenericErrorMessage
	}
	if len(apiErr.Fields) > 0 {
		return strings.Join(apiErr.Lines(), "\n")
	}
	if apiErr.Message != "" {
		return apiErr.Message
	}
	return GenericErrorMessage
}

// --- Response mapping ---

type errorBody struct {
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Errors  json.RawMessage `json:"errors"`
}

type fieldErrorItem struct {
	Field          string `json:"field"`
	Message        string `json:"message"`
	DefaultMessage string `json:"defaultMessage"`
}

// parseFieldErrors accepts {field: message}, {field: [messages]} and
// [{field, message|defaultMessage}].
func parseFieldErrors(raw json.RawMessage) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	fields := map[string]string{}

	var byField map[string]json.RawMessage
	if err := json.Unmarshal(raw, &byField); err == nil {
		for field, v := range byField {
			var msg string
			if err := json.Unmarshal(v, &msg); err == nil {
				fields[field] = msg
				continue
			}
			var msgs []string
			if err := json.Unmarshal(v, &msgs); err == nil && len(msgs) > 0 {
				fields[field] = strings.Join(msgs, "; ")
			}
		}
	} else {
		var items []fieldErrorItem
		if err := json.Unmarshal(raw, &items); err == nil {
			for _, it := range items {
				msg := it.Message
				if msg == "" {
					msg = it.DefaultMessage
				}
				if it.Field != "" && msg != "" {
					fields[it.Field] = msg
				}
			}
		}
	}

	if len(fields) == 0 {
		return nil
	}
	return fields
}

func responseError(status int, body []byte) *APIError {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)

	apiErr := &APIError{
		Kind:    KindTransport,
		Status:  status,
		Message: eb.Message,
	}
	if json.Valid(body) {
		apiErr.Details = json.RawMessage(body)
	}
	if apiErr.Message == "" {
		apiErr.Message = eb.Error
	}

	switch {
	case status == http.StatusNotFound:
		apiErr.Kind = KindNotFound
		if apiErr.Message == "" {
			apiErr.Message = "Part not found"
		}
	case status >= 400 && status < 500:
		if fields := parseFieldErrors(eb.Errors); fields != nil {
			apiErr.Kind = KindValidation
			apiErr.Fields = fields
		}
	}

	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	if apiErr.Message == "" {
		apiErr.Message = "An error occurred"
	}
	return apiErr
}
