package responsewriter

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResponseWriter(t *testing.T) {
	tests := []struct {
		name      string
		write     func(w http.ResponseWriter)
		wantCode  int
		wantBytes int
		wantBody  string
	}{
		{
			name:     "nothing written",
			write:    func(http.ResponseWriter) {},
			wantCode: http.StatusOK,
		},
		{
			name: "explicit status",
			write: func(w http.ResponseWriter) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"x"}`))
			},
			wantCode:  http.StatusBadRequest,
			wantBytes: 13,
			wantBody:  `{"error":"x"}`,
		},
		{
			name: "second WriteHeader ignored",
			write: func(w http.ResponseWriter) {
				w.WriteHeader(http.StatusTooManyRequests)
				w.WriteHeader(http.StatusInternalServerError)
			},
			wantCode: http.StatusTooManyRequests,
		},
		{
			name: "implicit 200 and multiple writes",
			write: func(w http.ResponseWriter) {
				_, _ = w.Write([]byte("[1,"))
				_, _ = w.Write([]byte("2]"))
				w.WriteHeader(http.StatusCreated)
			},
			wantCode:  http.StatusOK,
			wantBytes: 5,
			wantBody:  "[1,2]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			w := Wrap(rec)
			tt.write(w)

			assert.Equal(t, tt.wantCode, w.StatusCode())
			assert.Equal(t, tt.wantBytes, w.BytesWritten())
			assert.Equal(t, tt.wantBody, rec.Body.String())
			if tt.wantBytes > 0 || tt.wantCode != http.StatusOK {
				assert.Equal(t, tt.wantCode, rec.Code)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	rec := httptest.NewRecorder()
	assert.Same(t, rec, Wrap(rec).Unwrap())
}
