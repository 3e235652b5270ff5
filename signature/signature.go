// Package signature 为配置中心请求计算 HMAC-SHA1 签名。
//
// 签名串为 "timestamp\npathWithQuery"，timestamp 为毫秒时间戳，
// 结果以 "Apollo appId:signature" 放入 Authorization 头，时间戳放入 Timestamp 头。
package signature

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	HeaderAuthorization = "Authorization"
	HeaderTimestamp     = "Timestamp"

	delimiter = "\n"
)

// Sign 计算签名
func Sign(timestamp int64, pathWithQuery, secret string) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10) + delimiter + pathWithQuery))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Headers 生成签名请求头，secret 为空时返回 nil
func Headers(appID, rawURL, secret string, now time.Time) map[string]string {
	if secret == "" {
		return nil
	}
	ts := now.UnixMilli()
	return map[string]string{
		HeaderAuthorization: "Apollo " + appID + ":" + Sign(ts, PathWithQuery(rawURL), secret),
		HeaderTimestamp:     strconv.FormatInt(ts, 10),
	}
}

// PathWithQuery 提取 URL 的 path 与 query 部分，无法解析时原样返回
func PathWithQuery(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}
	if u.RawQuery != "" {
		p += "?" + u.RawQuery
	}
	return p
}

// MetadataKey gRPC metadata 的键必须为小写
func MetadataKey(header string) string {
	return strings.ToLower(header)
}
