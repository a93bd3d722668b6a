package requestid

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewarePropagatesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())

	var fromGin, fromCtx string
	r.GET("/ping", func(c *gin.Context) {
		fromGin = Value(c)
		fromCtx = FromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	cases := map[string]struct {
		header string
		keep   bool
	}{
		"caller supplied": {header: "req-42", keep: true},
		"missing":         {header: ""},
		"oversized":       {header: strings.Repeat("x", maxLength+1)},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			if tc.header != "" {
				req.Header.Set(headerKey, tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			require.NotEmpty(t, fromGin)
			assert.Equal(t, fromGin, fromCtx)
			assert.Equal(t, fromGin, w.Header().Get(headerKey))
			if tc.keep {
				assert.Equal(t, tc.header, fromGin)
			} else {
				assert.NotEqual(t, tc.header, fromGin)
			}
		})
	}
}

func TestFromContextWithoutValue(t *testing.T) {
	assert.Empty(t, FromContext(context.Background()))
	assert.Equal(t, "abc", FromContext(WithValue(context.Background(), "abc")))
	assert.Equal(t, "abc", Field(WithValue(context.Background(), "abc")).String)
}
