package binance

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign 对载荷做 HMAC-SHA256 签名，返回小写十六进制摘要。
// 载荷必须是即将发送的完整查询串，签名对每个字节敏感。
func Sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
