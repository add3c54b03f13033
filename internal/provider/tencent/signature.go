package tencent

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	algorithm         = "TC3-HMAC-SHA256"
	service           = "dnspod"
	contentType       = "application/json; charset=utf-8"
	signedHeaderNames = "content-type;host;x-tc-action"
)

// Sign 计算 TC3-HMAC-SHA256 签名，返回 Authorization 头的值
// 参考 https://cloud.tencent.com/document/product/213/30654
func Sign(secretID, secretKey string, timestamp int64, action, payload string) string {
	date := time.Unix(timestamp, 0).UTC().Format("2006-01-02")

	signedHeaders := "content-type:" + contentType + "\n" +
		"host:" + Host + "\n" +
		"x-tc-action:" + strings.ToLower(action) + "\n"

	canonicalRequest := strings.Join([]string{
		"POST",
		"/",
		"",
		signedHeaders,
		signedHeaderNames,
		hexSHA256(payload),
	}, "\n")

	credentialScope := date + "/" + service + "/tc3_request"
	stringToSign := strings.Join([]string{
		algorithm,
		strconv.FormatInt(timestamp, 10),
		credentialScope,
		hexSHA256(canonicalRequest),
	}, "\n")

	secretDate := hmacSHA256([]byte("TC3"+secretKey), date)
	secretService := hmacSHA256(secretDate, service)
	secretSigning := hmacSHA256(secretService, "tc3_request")
	signature := hex.EncodeToString(hmacSHA256(secretSigning, stringToSign))

	return fmt.Sprintf("%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		algorithm, secretID, credentialScope, signedHeaderNames, signature)
}

func hmacSHA256(key []byte, msg string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(msg))
	return mac.Sum(nil)
}

func hexSHA256(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
