package validator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

type startRequest struct {
	Title string `json:"title" binding:"required"`
	Count int    `json:"count" binding:"required,min=1"`
}

func newJSONContext(t *testing.T, body string) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c
}

func TestBindAcceptsValidPayload(t *testing.T) {
	Setup()
	c := newJSONContext(t, `{"title":"Algebra","count":3}`)

	var req startRequest
	if fields := Bind(c, &req); fields != nil {
		t.Fatalf("Bind returned errors for valid payload: %v", fields)
	}
	if req.Title != "Algebra" || req.Count != 3 {
		t.Errorf("bound payload = %+v", req)
	}
}

func TestBindKeysErrorsByJSONFieldName(t *testing.T) {
	Setup()
	c := newJSONContext(t, `{"count":0}`)

	var req startRequest
	fields := Bind(c, &req)
	if fields == nil {
		t.Fatal("Bind returned nil for invalid payload")
	}
	if msg, ok := fields["title"]; !ok || msg == "" {
		t.Errorf("missing translated error for title: %v", fields)
	}
	if msg, ok := fields["count"]; !ok || msg == "" {
		t.Errorf("missing translated error for count: %v", fields)
	}
}

func TestBindReportsMalformedJSON(t *testing.T) {
	Setup()
	c := newJSONContext(t, `{"title":`)

	var req startRequest
	fields := Bind(c, &req)
	if fields == nil {
		t.Fatal("Bind returned nil for malformed JSON")
	}
	if fields["detail"] == "" {
		t.Errorf("missing detail for malformed JSON: %v", fields)
	}
}
