package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestIssueAndParse(t *testing.T) {
	tok, err := Issue("u1", "geoattend", "secret", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := Parse(tok.Value, "secret", "geoattend")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Subject != "u1" {
		t.Fatalf("subject = %q", claims.Subject)
	}
	if _, err := Parse(tok.Value, "other", "geoattend"); err == nil {
		t.Fatalf("expected signature error")
	}
	if _, err := Parse(tok.Value, "secret", "someone-else"); err == nil {
		t.Fatalf("expected issuer mismatch")
	}
}

func TestParseExpired(t *testing.T) {
	tok, err := Issue("u1", "geoattend", "secret", -time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := Parse(tok.Value, "secret", "geoattend"); err == nil {
		t.Fatalf("expected expiry error")
	}
}

func TestIdentityOwns(t *testing.T) {
	if !(Identity{UserID: "u1"}).Owns("u1") {
		t.Fatalf("expected owner match")
	}
	if (Identity{}).Owns("") {
		t.Fatalf("empty identity must not own anything")
	}
}

func TestRequireUserHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tok, _ := Issue("u7", "geoattend", "secret", time.Hour)

	r := gin.New()
	r.GET("/me", RequireUser("secret", "geoattend"), func(c *gin.Context) {
		id, _ := FromContext(c)
		c.String(http.StatusOK, id.UserID)
	})

	cases := []struct {
		name   string
		header string
		value  string
		status int
	}{
		{"auth-token", HeaderToken, tok.Value, http.StatusOK},
		{"bearer", "Authorization", "Bearer " + tok.Value, http.StatusOK},
		{"missing", "", "", http.StatusUnauthorized},
		{"garbage", HeaderToken, "nope", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if tc.header != "" {
			req.Header.Set(tc.header, tc.value)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != tc.status {
			t.Fatalf("%s: status %d want %d", tc.name, rec.Code, tc.status)
		}
		if tc.status == http.StatusOK && rec.Body.String() != "u7" {
			t.Fatalf("%s: body %q", tc.name, rec.Body.String())
		}
	}
}
