package aliyun

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

const (
	algorithm         = "ACS3-HMAC-SHA256"
	signedHeaderNames = "host;x-acs-action;x-acs-content-sha256;x-acs-date;x-acs-signature-nonce;x-acs-version"
)

// Sign 计算 ACS3-HMAC-SHA256 签名，返回 Authorization 头的值
// 参考 https://help.aliyun.com/zh/sdk/product-overview/v3-request-structure-and-signature
func Sign(secretID, secretKey, timestamp, action, query, hashedBody, nonce string) string {
	signedHeaders := "host:" + Host + "\n" +
		"x-acs-action:" + action + "\n" +
		"x-acs-content-sha256:" + hashedBody + "\n" +
		"x-acs-date:" + timestamp + "\n" +
		"x-acs-signature-nonce:" + nonce + "\n" +
		"x-acs-version:" + Version + "\n"

	canonicalRequest := strings.Join([]string{
		"POST",
		"/",
		query,
		signedHeaders,
		signedHeaderNames,
		hashedBody,
	}, "\n")

	stringToSign := algorithm + "\n" + hexSHA256(canonicalRequest)

	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(stringToSign))
	signature := hex.EncodeToString(mac.Sum(nil))

	return fmt.Sprintf("%s Credential=%s,SignedHeaders=%s,Signature=%s",
		algorithm, secretID, signedHeaderNames, signature)
}

// CanonicalQuery 按参数名排序并编码查询参数
func CanonicalQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, percentEncode(k)+"="+percentEncode(params[k]))
	}
	return strings.Join(pairs, "&")
}

// percentEncode 除 A-Za-z0-9 _ - . ~ 外全部编码为大写 %XX，空格编码为 %20
func percentEncode(s string) string {
	const hexDigits = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hexDigits[c>>4])
		b.WriteByte(hexDigits[c&0x0f])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9':
		return true
	case c == '_', c == '-', c == '.', c == '~':
		return true
	}
	return false
}

func hexSHA256(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
