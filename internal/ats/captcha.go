// Проверка решений altcha для формы входа с защитой от повторного использования подписи.
package ats

import (
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/altcha-org/altcha-lib-go"
	"github.com/prometheus/client_golang/prometheus"
)

var AltchaExpires time.Duration = time.Hour

var badSignaturesCounter = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "ats",
	Name:      "captcha_replica_attacks_total",
	Help:      "Total count of duplicated signatures in requests with captcha",
})

func init() {
	prometheus.MustRegister(badSignaturesCounter)
}

type CaptchaSignatures struct {
	hmacKey    string
	disabled   bool
	signatures map[string]time.Time
	mu         sync.Mutex
}

func NewCaptchaService(hmacKey string, disabled bool) *CaptchaSignatures {
	if disabled {
		slog.Warn("Login captcha disabled")
	}
	return &CaptchaSignatures{hmacKey: hmacKey, disabled: disabled, signatures: make(map[string]time.Time)}
}

// Validate проверяет base64 payload решения. Подпись принимается один раз.
func (c *CaptchaSignatures) Validate(payload string) bool {
	if c.disabled {
		return true
	}

	decodedPayload, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		slog.Error("Decode altcha payload", "err", err)
		return false
	}

	var m altcha.Payload
	if err := json.Unmarshal(decodedPayload, &m); err != nil {
		slog.Error("Unmarshal altcha payload", "err", err)
		return false
	}

	verified, err := altcha.VerifySolution(m, c.hmacKey, true)
	if err != nil || !verified {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.signatures[m.Signature]; ok {
		badSignaturesCounter.Inc()
		return false
	}

	c.signatures[m.Signature] = time.Now()
	return true
}

// ClearExpired удаляет подписи старше срока жизни challenge.
func (c *CaptchaSignatures) ClearExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	cutoff := time.Now().Add(-AltchaExpires)
	for sig, ts := range c.signatures {
		if ts.Before(cutoff) {
			delete(c.signatures, sig)
		}
	}
}
