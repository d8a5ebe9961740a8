package clients

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"parts-inventory/internal/models"
)

// EnvelopeMode selects how list responses are unwrapped. EnvelopeAuto sniffs
// the body structure; the other modes pin one shape.
type EnvelopeMode string

const (
	EnvelopeAuto      EnvelopeMode = "auto"
	EnvelopeBare      EnvelopeMode = "bare"
	EnvelopeData      EnvelopeMode = "data"
	EnvelopePaginated EnvelopeMode = "paginated"
)

// EnvelopeHeader lets the server state the envelope explicitly; it overrides
// the configured mode.
const EnvelopeHeader = "X-Parts-Envelope"

func ParseEnvelopeMode(s string) (EnvelopeMode, error) {
	switch m := EnvelopeMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return EnvelopeAuto, nil
	case EnvelopeAuto, EnvelopeBare, EnvelopeData, EnvelopePaginated:
		return m, nil
	}
	return "", fmt.Errorf("unknown envelope mode %q", s)
}

// Page is the pagination metadata of a paginated envelope.
type Page struct {
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	Number        int   `json:"number"`
	Size          int   `json:"size"`
}

type dataEnvelope struct {
	Data json.RawMessage `json:"data"`
}

type paginatedEnvelope struct {
	Content []json.RawMessage `json:"content"`
	Page
}

// DetectEnvelope sniffs a list body: a bare array, {"data": ...} or
// {"content": [...], ...}. It returns "" when none matches.
func DetectEnvelope(body []byte) EnvelopeMode {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}
	switch body[0] {
	case '[':
		return EnvelopeBare
	case '{':
		var keys map[string]json.RawMessage
		if err := json.Unmarshal(body, &keys); err != nil {
			return ""
		}
		if _, ok := keys["content"]; ok {
			return EnvelopePaginated
		}
		if _, ok := keys["data"]; ok {
			return EnvelopeData
		}
	}
	return ""
}

func decodeList(body []byte, mode EnvelopeMode) ([]models.Part, *Page, error) {
	if mode == "" || mode == EnvelopeAuto {
		mode = DetectEnvelope(body)
	}

	switch mode {
	case EnvelopeBare:
		var raws []json.RawMessage
		if err := json.Unmarshal(body, &raws); err != nil {
			return nil, nil, fmt.Errorf("decode bare list: %w", err)
		}
		parts, err := models.DecodeParts(raws)
		return parts, nil, err

	case EnvelopeData:
		var env dataEnvelope
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, nil, fmt.Errorf("decode data envelope: %w", err)
		}
		inner := bytes.TrimSpace(env.Data)
		if len(inner) > 0 && inner[0] == '{' {
			return decodeList(inner, EnvelopePaginated)
		}
		return decodeList(inner, EnvelopeBare)

	case EnvelopePaginated:
		var env paginatedEnvelope
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, nil, fmt.Errorf("decode paginated envelope: %w", err)
		}
		if env.Content == nil {
			return nil, nil, fmt.Errorf("%w: paginated envelope without content", ErrUnknownEnvelope)
		}
		parts, err := models.DecodeParts(env.Content)
		if err != nil {
			return nil, nil, err
		}
		page := env.Page
		return parts, &page, nil
	}

	return nil, nil, ErrUnknownEnvelope
}

// decodeOne unwraps a single-part body, either bare or under "data".
func decodeOne(body []byte, mode EnvelopeMode) (models.Part, error) {
	raw := json.RawMessage(bytes.TrimSpace(body))

	if mode != EnvelopeBare {
		var env dataEnvelope
		if err := json.Unmarshal(raw, &env); err == nil && len(env.Data) > 0 {
			raw = env.Data
		} else if mode == EnvelopeData {
			return models.Part{}, fmt.Errorf("%w: expected data envelope", ErrUnknownEnvelope)
		}
	}

	return models.DecodePart(raw)
}
