package clients

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parts-inventory/internal/models"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...func(*Config)) *PartsClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := Config{BaseURL: srv.URL, Timeout: 2 * time.Second}
	for _, o := range opts {
		o(&cfg)
	}
	c, err := NewPartsClient(cfg)
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

const nestedPart = `{"id":"1","name":"Bolt","sku":"B-1","quantity":3,"level":{"id":11,"levelNumber":2,"shelf":{"id":7,"side":"LEFT","aisle":{"id":4,"number":5}}}}`

func TestNewPartsClientDefaults(t *testing.T) {
	c, err := NewPartsClient(Config{})
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.BaseURL())
	assert.Equal(t, DefaultTimeout, c.timeout)
	assert.Equal(t, EnvelopeAuto, c.envelope)

	_, err = NewPartsClient(Config{BaseURL: "not a url"})
	assert.Error(t, err)
}

func TestListPartsEnvelopes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bare array", `[` + nestedPart + `]`},
		{"data envelope", `{"data":[` + nestedPart + `],"message":"ok"}`},
		{"paginated inside data", `{"data":{"content":[` + nestedPart + `],"totalElements":1}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "/api/parts", r.URL.Path)
				writeJSON(w, http.StatusOK, tt.body)
			})

			parts, err := c.ListParts(context.Background())
			require.NoError(t, err)
			require.Len(t, parts, 1)
			assert.Equal(t, models.ID("1"), parts[0].ID)
			assert.Equal(t, 11, parts[0].Level.ID)
			assert.Equal(t, "Aisle 5, LEFT Side, Level 2", parts[0].LocationLabel())
		})
	}
}

func TestSearchPartsPaginatedResponseIsNormalized(t *testing.T) {
	body := `{
		"content": [
			{"id": 1, "name": "Bolt", "sku": "B-1", "quantity": 3, "aisle": 4, "side": "LEFT", "level": 2},
			{"id": 2, "name": "Nut", "sku": "N-1", "quantity": 0, "aisle": 7, "side": "RIGHT", "level": 1, "category": "fasteners"}
		],
		"totalElements": 2, "totalPages": 1, "number": 0, "size": 20
	}`
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, body)
	})

	parts, err := c.SearchParts(context.Background(), models.PartSearchParams{Name: "b"})
	require.NoError(t, err)
	require.Len(t, parts, 2)

	for _, p := range parts {
		assert.Equal(t, models.UnknownID, p.Level.ID)
		assert.Equal(t, models.UnknownID, p.Level.Shelf.ID)
		assert.Equal(t, models.UnknownID, p.Level.Shelf.Aisle.ID)
	}
	assert.Equal(t, 4, parts[0].Level.Shelf.Aisle.Number)
	assert.Equal(t, models.SideLeft, parts[0].Level.Shelf.Side)
	assert.Equal(t, 2, parts[0].Level.LevelNumber)
	assert.Equal(t, models.ID("2"), parts[1].ID)
	require.NotNil(t, parts[1].Category)
	assert.Equal(t, "fasteners", *parts[1].Category)
	assert.Nil(t, parts[0].Category)
}

func TestSearchPartsOmitsEmptyParams(t *testing.T) {
	queries := make(chan string, 1)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/parts/search", r.URL.Path)
		queries <- r.URL.RawQuery
		writeJSON(w, http.StatusOK, `[]`)
	})

	parts, err := c.SearchParts(context.Background(), models.PartSearchParams{Name: " bolt ", SKU: "", Side: "LEFT", Category: "  "})
	require.NoError(t, err)
	assert.Empty(t, parts)
	assert.Equal(t, "name=bolt&side=LEFT", <-queries)
}

func TestEnvelopeHeaderOverridesSniffing(t *testing.T) {
	// The response header wins over the configured mode.
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(EnvelopeHeader, "data")
		writeJSON(w, http.StatusOK, `{"data":[`+nestedPart+`]}`)
	}, func(cfg *Config) { cfg.Envelope = EnvelopeBare })

	parts, err := c.ListParts(context.Background())
	require.NoError(t, err)
	assert.Len(t, parts, 1)
}

func TestUnknownEnvelopeFailsLoudly(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"items":[]}`)
	})

	_, err := c.ListParts(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, ErrUnknownEnvelope)
}

func TestGetPartUnwrapsDataAndNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/parts/1":
			writeJSON(w, http.StatusOK, `{"data":`+nestedPart+`}`)
		case "/api/parts/2":
			writeJSON(w, http.StatusOK, nestedPart)
		default:
			writeJSON(w, http.StatusNotFound, `{"message":"Part 404 not found"}`)
		}
	})

	p, err := c.GetPart(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "Bolt", p.Name)

	p, err = c.GetPart(context.Background(), "2")
	require.NoError(t, err)
	assert.Equal(t, "B-1", p.SKU)

	_, err = c.GetPart(context.Background(), "404")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "Part 404 not found", apiErr.Message)
}

func TestEmptyIDNeverReachesServer(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	_, err := c.GetPart(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingID)
	_, err = c.UpdatePart(context.Background(), "", models.PartUpdateInput{})
	assert.ErrorIs(t, err, ErrMissingID)
	assert.ErrorIs(t, c.DeletePart(context.Background(), ""), ErrMissingID)
	assert.Zero(t, calls.Load())
}

func TestCreatePartSendsPayloadAndMapsValidation(t *testing.T) {
	payloads := make(chan map[string]any, 1)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var payload map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		payloads <- payload
		writeJSON(w, http.StatusBadRequest, `{"message":"Invalid part","errors":{"sku":"must be unique","name":["is required","is too short"]}}`)
	})

	_, err := c.CreatePart(context.Background(), models.PartCreateInput{Name: "", SKU: "X", Quantity: 2, Aisle: "1", Side: "LEFT", Level: "3"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, map[string]string{"sku": "must be unique", "name": "is required; is too short"}, apiErr.Fields)
	assert.Equal(t, "name: is required; is too short\nsku: must be unique", UserMessage(err))

	got := <-payloads
	assert.Equal(t, "X", got["sku"])
	assert.Equal(t, "3", got["level"])
	assert.EqualValues(t, 2, got["quantity"])
}

func TestCreatePartSpringStyleErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, `{"errors":[{"field":"quantity","defaultMessage":"must be >= 0"}]}`)
	})

	_, err := c.CreatePart(context.Background(), models.PartCreateInput{Name: "a", SKU: "b"})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "quantity: must be >= 0", UserMessage(err))
}

func TestUnstructuredClientErrorIsTransport(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, `{"message":"SKU already exists"}`)
	})

	_, err := c.UpdatePart(context.Background(), "5", models.PartUpdateInput{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.NotErrorIs(t, err, ErrValidation)
	assert.Equal(t, "SKU already exists", UserMessage(err))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.Status)
}

func TestServerErrorWithoutBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	err := c.DeletePart(context.Background(), "3")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, "Internal Server Error", UserMessage(err))
}

func TestTimeoutSurfacesAsTransportTimeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}, func(cfg *Config) { cfg.Timeout = 50 * time.Millisecond })

	_, err := c.ListParts(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.Timeout)
	assert.Equal(t, "request timed out", apiErr.Message)
}

func TestNetworkFailureIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewPartsClient(Config{BaseURL: url})
	require.NoError(t, err)

	err = c.Ping(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
}

func TestRequestIDIsForwarded(t *testing.T) {
	ids := make(chan string, 1)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		ids <- r.Header.Get(RequestIDHeader)
		writeJSON(w, http.StatusOK, `[]`)
	})

	_, err := c.ListParts(WithRequestID(context.Background(), "req-123"))
	require.NoError(t, err)
	assert.Equal(t, "req-123", <-ids)
}

func TestUserMessageFallbacks(t *testing.T) {
	assert.Equal(t, "", UserMessage(nil))
	assert.Equal(t, GenericErrorMessage, UserMessage(errors.New("boom")))
	assert.Equal(t, GenericErrorMessage, UserMessage(&APIError{}))
	assert.Equal(t, "Quantity cannot be negative", UserMessage(&APIError{Kind: KindValidation, Message: "Quantity cannot be negative"}))
}
