package payment

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// Paystack configuration errors
var (
	ErrPaystackMissingSecret  = errors.New("paystack: secret key is required")
	ErrPaystackInvalidBaseURL = errors.New("paystack: base URL must be an absolute http(s) URL")
)

const (
	// PaystackBaseURL is the production API root
	PaystackBaseURL = "https://api.paystack.co"
	// PaystackSignatureHeader carries the hex HMAC-SHA512 of the raw body
	PaystackSignatureHeader = "x-paystack-signature"
	// LegacySignatureHeader is accepted from older integrations that send "sign"
	LegacySignatureHeader = "sign"

	defaultPaystackTimeout = 10 * time.Second
)

// PaystackConfig holds the credentials and endpoint of a Paystack account
type PaystackConfig struct {
	SecretKey string
	BaseURL   string
	Timeout   time.Duration
}

// Validate checks the config and fills defaults
func (c *PaystackConfig) Validate() error {
	if strings.TrimSpace(c.SecretKey) == "" {
		return ErrPaystackMissingSecret
	}
	if c.BaseURL == "" {
		c.BaseURL = PaystackBaseURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrPaystackInvalidBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout <= 0 {
		c.Timeout = defaultPaystackTimeout
	}
	return nil
}
