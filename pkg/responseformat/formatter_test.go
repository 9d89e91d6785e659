package responseformat

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

type payload struct {
	Source string  `json:"source"`
	Mean   float64 `json:"mean"`
}

func TestWriteResponseJSON(t *testing.T) {
	f := NewFormatter()
	req := httptest.NewRequest(http.MethodGet, "/api/ranking", nil)
	rec := httptest.NewRecorder()

	require.NoError(t, f.WriteResponse(rec, req, payload{Source: "Benin", Mean: 240.5}))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ContentTypeJSON, rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"source":"Benin","mean":240.5}`, rec.Body.String())
}

func TestWriteResponseMsgPack(t *testing.T) {
	f := NewFormatter()
	req := httptest.NewRequest(http.MethodGet, "/api/ranking?format=msgpack", nil)
	rec := httptest.NewRecorder()

	require.NoError(t, f.WriteResponse(rec, req, payload{Source: "Togo", Mean: 1}))
	assert.Equal(t, ContentTypeMsgPack, rec.Header().Get("Content-Type"))

	var decoded map[string]any
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &decoded))
	assert.Equal(t, "Togo", decoded["source"], "json tags are used as msgpack keys")
}

func TestWriteError(t *testing.T) {
	f := NewFormatter()
	f.now = func() time.Time { return time.Unix(1700000000, 0) }

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, f.WriteError(rec, req, http.StatusBadRequest, "unknown metric", errors.New("WSgust")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, ErrorResponse{Error: "unknown metric", Status: 400, Timestamp: 1700000000, Details: "WSgust"}, resp)

	rec = httptest.NewRecorder()
	require.NoError(t, f.WriteError(rec, req, http.StatusInternalServerError, "boom", nil))
	assert.NotContains(t, rec.Body.String(), "details")
}
