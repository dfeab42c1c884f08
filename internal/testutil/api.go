package testutil

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"sporthub/pkg/log"
)

// RequestAPITest describes one request/response cycle to drive through a
// gin.Engine in tests.
type RequestAPITest struct {
	Method       string
	Path         string
	Body         *bytes.Reader
	WantResponse []int
	Headers      map[string]string
}

// ExecuteAPITest fires request against router and asserts the response code
// is one of request.WantResponse.
func ExecuteAPITest(logger log.Logger, t *testing.T, router *gin.Engine, request RequestAPITest) {
	var body io.Reader = http.NoBody
	if request.Body != nil {
		body = request.Body
	}
	req, err := http.NewRequest(request.Method, request.Path, body)
	if err != nil {
		logger.Error().Err(err).Msg("failed to build request in ExecuteAPITest")
		return
	}
	for key, val := range request.Headers {
		req.Header.Set(key, val)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Contains(t, request.WantResponse, w.Code)
}
