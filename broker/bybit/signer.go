package bybit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

const (
	headerAPIKey     = "X-BAPI-API-KEY"
	headerSign       = "X-BAPI-SIGN"
	headerTimestamp  = "X-BAPI-TIMESTAMP"
	headerRecvWindow = "X-BAPI-RECV-WINDOW"
)

// signer produces the v5 authentication headers.
type signer struct {
	apiKey     string
	secret     []byte
	recvWindow string
	now        func() time.Time
}

func newSigner(apiKey, secret string, recvWindow time.Duration) *signer {
	if recvWindow <= 0 {
		recvWindow = 5 * time.Second
	}
	return &signer{
		apiKey:     apiKey,
		secret:     []byte(secret),
		recvWindow: strconv.FormatInt(recvWindow.Milliseconds(), 10),
		now:        time.Now,
	}
}

// headers signs timestamp + key + recv window + payload, where payload is the
// query string for GET and the raw JSON body for POST.
func (s *signer) headers(payload string) map[string]string {
	ts := strconv.FormatInt(s.now().UnixMilli(), 10)
	return map[string]string{
		headerAPIKey:     s.apiKey,
		headerTimestamp:  ts,
		headerRecvWindow: s.recvWindow,
		headerSign:       s.sign(ts + s.apiKey + s.recvWindow + payload),
	}
}

func (s *signer) sign(msg string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(msg))
	return hex.EncodeToString(mac.Sum(nil))
}
