// Package responseformat encodes API responses as JSON or MessagePack.
package responseformat

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	ContentTypeJSON    = "application/json"
	ContentTypeMsgPack = "application/x-msgpack"
)

// ErrorResponse is the envelope written for every failed API request
type ErrorResponse struct {
	Error     string `json:"error"`
	Status    int    `json:"status"`
	Timestamp int64  `json:"timestamp"`
	Details   string `json:"details,omitempty"`
}

// Formatter handles encoding and writing responses in JSON or MessagePack format
type Formatter struct {
	now func() time.Time
}

// NewFormatter creates a new response formatter
func NewFormatter() *Formatter {
	return &Formatter{now: time.Now}
}

// WantsMsgPack reports whether the request asked for MessagePack via format=msgpack
func WantsMsgPack(req *http.Request) bool {
	return req.URL.Query().Get("format") == "msgpack"
}

// WriteResponse writes data with a 200 status in the format requested by req.
// JSON is the default; MessagePack is used when format=msgpack is specified.
func (f *Formatter) WriteResponse(w http.ResponseWriter, req *http.Request, data any) error {
	return f.WriteStatus(w, req, http.StatusOK, data)
}

// WriteStatus writes data with the given status code
func (f *Formatter) WriteStatus(w http.ResponseWriter, req *http.Request, status int, data any) error {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if WantsMsgPack(req) {
		w.Header().Set("Content-Type", ContentTypeMsgPack)
		w.WriteHeader(status)
		encoder := msgpack.NewEncoder(w)
		encoder.SetCustomStructTag("json") // Use json tags for MessagePack
		return encoder.Encode(data)
	}

	w.Header().Set("Content-Type", ContentTypeJSON)
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes an ErrorResponse.  err, when non-nil, becomes the details field.
func (f *Formatter) WriteError(w http.ResponseWriter, req *http.Request, status int, message string, err error) error {
	resp := ErrorResponse{
		Error:     message,
		Status:    status,
		Timestamp: f.now().Unix(),
	}
	if err != nil {
		resp.Details = err.Error()
	}
	return f.WriteStatus(w, req, status, resp)
}
