package engine

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/url"
	"time"
)

// AssembleAuthURL builds the signed websocket URL the speech engines
// require: an HMAC-SHA256 over "host", "date" and the request line, carried
// base64-encoded in the query string together with the signing date.
func AssembleAuthURL(rawURL, apiKey, apiSecret string, now time.Time) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid engine URL %s: %w", rawURL, err)
	}

	// RFC1123 with a literal GMT zone, as the signature scheme demands.
	date := now.UTC().Format("Mon, 02 Jan 2006 15:04:05 GMT")

	signOrigin := "host: " + parsed.Host + "\n" +
		"date: " + date + "\n" +
		"GET " + parsed.Path + " HTTP/1.1"

	mac := hmac.New(sha256.New, []byte(apiSecret))
	mac.Write([]byte(signOrigin))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	authOrigin := fmt.Sprintf(
		`api_key="%s", algorithm="hmac-sha256", headers="host date request-line", signature="%s"`,
		apiKey, signature)
	authorization := base64.StdEncoding.EncodeToString([]byte(authOrigin))

	values := url.Values{}
	values.Set("authorization", authorization)
	values.Set("date", date)
	values.Set("host", parsed.Host)

	return rawURL + "?" + values.Encode(), nil
}

// ChecksumHeaders builds the header set for the checksum-authenticated HTTP
// expression API: the parameter object travels base64-encoded with an MD5
// checksum over key, timestamp and parameters.
func ChecksumHeaders(appID, apiKey, paramJSON string, now time.Time) map[string]string {
	curTime := fmt.Sprintf("%d", now.Unix())
	paramBase64 := base64.StdEncoding.EncodeToString([]byte(paramJSON))

	sum := md5.Sum([]byte(apiKey + curTime + paramBase64))

	return map[string]string{
		"X-CurTime":    curTime,
		"X-Param":      paramBase64,
		"X-Appid":      appID,
		"X-CheckSum":   hex.EncodeToString(sum[:]),
		"Content-Type": "application/json",
	}
}
