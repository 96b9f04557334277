package engine

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/url"
	"testing"
	"time"
)

// TestAssembleAuthURL verifies the signed URL carries the expected query
// parameters and a reproducible signature.
func TestAssembleAuthURL(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

	signed, err := AssembleAuthURL("wss://ws-api.example.com/v2/iat", "key123", "secret456", now)
	if err != nil {
		t.Fatalf("AssembleAuthURL failed: %v", err)
	}

	parsed, err := url.Parse(signed)
	if err != nil {
		t.Fatalf("Signed URL does not parse: %v", err)
	}
	query := parsed.Query()

	wantDate := "Fri, 15 Mar 2024 10:30:00 GMT"
	if got := query.Get("date"); got != wantDate {
		t.Errorf("Expected date %q, got %q", wantDate, got)
	}
	if got := query.Get("host"); got != "ws-api.example.com" {
		t.Errorf("Expected host ws-api.example.com, got %q", got)
	}

	authRaw, err := base64.StdEncoding.DecodeString(query.Get("authorization"))
	if err != nil {
		t.Fatalf("Authorization is not valid base64: %v", err)
	}
	auth := string(authRaw)

	signOrigin := "host: ws-api.example.com\n" +
		"date: " + wantDate + "\n" +
		"GET /v2/iat HTTP/1.1"
	mac := hmac.New(sha256.New, []byte("secret456"))
	mac.Write([]byte(signOrigin))
	wantSignature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	wantAuth := `api_key="key123", algorithm="hmac-sha256", headers="host date request-line", signature="` + wantSignature + `"`
	if auth != wantAuth {
		t.Errorf("Authorization mismatch:\n got %s\nwant %s", auth, wantAuth)
	}
}

// TestAssembleAuthURL_InvalidURL verifies malformed endpoints error out.
func TestAssembleAuthURL_InvalidURL(t *testing.T) {
	_, err := AssembleAuthURL("://not-a-url", "k", "s", time.Now())
	if err == nil {
		t.Error("Expected error for malformed URL")
	}
}

// TestChecksumHeaders verifies the checksum header set.
func TestChecksumHeaders(t *testing.T) {
	now := time.Unix(1710498600, 0)
	param := `{"image_name":"frame.jpg"}`

	headers := ChecksumHeaders("app1", "key123", param, now)

	if headers["X-Appid"] != "app1" {
		t.Errorf("Expected X-Appid app1, got %q", headers["X-Appid"])
	}
	if headers["X-CurTime"] != "1710498600" {
		t.Errorf("Expected X-CurTime 1710498600, got %q", headers["X-CurTime"])
	}

	wantParam := base64.StdEncoding.EncodeToString([]byte(param))
	if headers["X-Param"] != wantParam {
		t.Errorf("Expected X-Param %q, got %q", wantParam, headers["X-Param"])
	}

	sum := md5.Sum([]byte("key123" + "1710498600" + wantParam))
	if headers["X-CheckSum"] != hex.EncodeToString(sum[:]) {
		t.Errorf("Checksum mismatch: got %q", headers["X-CheckSum"])
	}
}
