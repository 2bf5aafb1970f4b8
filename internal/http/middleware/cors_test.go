package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrigins_Allowed(t *testing.T) {
	assert.True(t, Origins(nil).Allowed("https://evil.example"))
	assert.True(t, Origins{"*"}.Allowed("https://any.example"))

	o := Origins{"https://lo.app", "http://localhost:5173"}
	assert.True(t, o.Allowed("https://lo.app"))
	assert.False(t, o.Allowed("https://lo.app.evil.example"))
	assert.False(t, o.Allowed(""))
}

func TestOrigins_CheckOrigin(t *testing.T) {
	o := Origins{"https://lo.app"}

	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, o.CheckOrigin(r), "no Origin header")

	r.Header.Set("Origin", "https://lo.app")
	assert.True(t, o.CheckOrigin(r))

	r.Header.Set("Origin", "https://other.example")
	assert.False(t, o.CheckOrigin(r))
}

func TestCORS_UsesOriginList(t *testing.T) {
	h := CORS(Origins{"https://lo.app"}, false)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/cities", nil)
	req.Header.Set("Origin", "https://lo.app")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, "https://lo.app", rr.Header().Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "https://other.example")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}
