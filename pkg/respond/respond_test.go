package respond

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSON(t *testing.T) {
	tests := []struct {
		name string
		code int
		data any
		want string
	}{
		{"task page", http.StatusOK, map[string]any{"items": []string{}, "total": 0}, `{"items":[],"total":0}`},
		{"accepted job", http.StatusAccepted, map[string]string{"status": "queued"}, `{"status":"queued"}`},
		{"nil slice", http.StatusOK, []int(nil), `null`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			JSON(w, httptest.NewRequest(http.MethodGet, "/api/tasks", nil), tt.code, tt.data)

			assert.Equal(t, tt.code, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.JSONEq(t, tt.want, w.Body.String())
		})
	}
}

func TestNoContent(t *testing.T) {
	w := httptest.NewRecorder()
	NoContent(w)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Zero(t, w.Body.Len())
}

func TestError(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		message string
	}{
		{name: "bad request", code: http.StatusBadRequest, message: "invalid input"},
		{name: "method not allowed", code: http.StatusMethodNotAllowed, message: "method not allowed"},
		{name: "mirrored upstream", code: http.StatusTooManyRequests, message: "failed to process AI edit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/", nil)

			Error(w, r, tt.code, tt.message)

			assert.Equal(t, tt.code, w.Code)
			var got map[string]string
			require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
			assert.Equal(t, tt.message, got["error"])
		})
	}
}

func TestDecode(t *testing.T) {
	type payload struct {
		Title string `json:"title"`
	}

	tests := []struct {
		name    string
		body    string
		want    string
		wantErr error
		anyErr  bool
	}{
		{name: "valid", body: `{"title":"x"}`, want: "x"},
		{name: "empty", body: "", wantErr: ErrEmptyBody},
		{name: "malformed", body: `{"title":`, anyErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))

			var p payload
			err := Decode(w, r, &p)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.anyErr:
				assert.Error(t, err)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want, p.Title)
			}
		})
	}
}
