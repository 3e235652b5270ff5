package signature

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSign(t *testing.T) {
	const (
		ts     = int64(1576478257344)
		path   = "/configs/100004458/default/application?ip=10.0.0.1"
		secret = "df23df3f59884980844ff3dada30fa97"
	)

	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte("1576478257344\n" + path))
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	assert.Equal(t, want, Sign(ts, path, secret))
	assert.NotEqual(t, want, Sign(ts+1, path, secret))
	assert.NotEqual(t, want, Sign(ts, path, "other"))
}

func TestHeaders(t *testing.T) {
	assert.Nil(t, Headers("demo", "http://cs/configs/demo/default/app", "", time.Now()))

	now := time.UnixMilli(1576478257344)
	h := Headers("demo", "http://cs:8080/configs/demo/default/app?releaseKey=r1", "secret", now)
	assert.Equal(t, "1576478257344", h[HeaderTimestamp])
	assert.Equal(t,
		"Apollo demo:"+Sign(1576478257344, "/configs/demo/default/app?releaseKey=r1", "secret"),
		h[HeaderAuthorization])
}

func TestPathWithQuery(t *testing.T) {
	assert.Equal(t, "/notifications/v2?appId=demo", PathWithQuery("http://cs:8080/notifications/v2?appId=demo"))
	assert.Equal(t, "/", PathWithQuery("http://cs:8080"))
	assert.Equal(t, "/configs/a%2Fb", PathWithQuery("http://cs/configs/a%2Fb"))
	assert.Equal(t, "authorization", MetadataKey(HeaderAuthorization))
}
