package magiclink

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/go-site-api/internal/domain"
	"github.com/go-site-api/internal/pkg/secrets"
)

const (
	// QueryParam carries the encrypted payload on the consume URL.
	QueryParam = "payload"

	// LinkPath is where the web client consumes magic links.
	LinkPath = "/magic"

	DefaultTTL = 30 * time.Minute
)

// payload is what actually rides inside the encrypted blob. It is never
// persisted; the encryption key is its only integrity protection.
type payload struct {
	EmailAddress       string `json:"emailAddress"`
	ExpirationDate     string `json:"expirationDate"`
	ValidationRequired bool   `json:"validationRequired"`
}

// Issuer encodes and decodes magic links. It is a deterministic encode/decode
// pair over the cipher — stateless apart from the injected clock.
type Issuer struct {
	cipher *secrets.Cipher
	now    func() time.Time
}

func NewIssuer(cipher *secrets.Cipher) *Issuer {
	return &Issuer{cipher: cipher, now: time.Now}
}

// Issue builds an absolute magic-link URL for email on domainURL, valid for
// ttl (DefaultTTL when zero). validationRequired binds consumption to the
// session that requested the link; pass false only for flows where that is
// deliberately impossible, such as a QR-code cross-device hand-off.
func (i *Issuer) Issue(email, domainURL string, validationRequired bool, ttl time.Duration) (string, error) {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	raw, err := json.Marshal(payload{
		EmailAddress:       email,
		ExpirationDate:     i.now().Add(ttl).UTC().Format(time.RFC3339Nano),
		ValidationRequired: validationRequired,
	})
	if err != nil {
		return "", fmt.Errorf("marshal magic link payload: %w", err)
	}
	blob, err := i.cipher.Encrypt(string(raw))
	if err != nil {
		return "", fmt.Errorf("encrypt magic link payload: %w", err)
	}
	u, err := url.Parse(domainURL)
	if err != nil {
		return "", fmt.Errorf("parse domain url: %w", err)
	}
	u.Path = LinkPath
	q := url.Values{}
	q.Set(QueryParam, blob)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Validate checks a magic link and returns the email it proves possession
// of. boundEmail is the address stored in the consuming request's own
// session when the link was requested; it must match unless the link was
// issued with validation disabled.
//
// Every parse or decrypt failure comes back as domain.ErrInvalidMagicLink
// with no further detail, so the link cannot be used as a decryption oracle.
func (i *Issuer) Validate(link, boundEmail string) (string, error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", domain.ErrInvalidMagicLink
	}
	blob := u.Query().Get(QueryParam)
	if blob == "" {
		return "", domain.ErrInvalidMagicLink
	}
	raw, err := i.cipher.Decrypt(blob)
	if err != nil {
		return "", domain.ErrInvalidMagicLink
	}
	var p payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return "", domain.ErrInvalidMagicLink
	}
	if p.EmailAddress == "" {
		return "", domain.ErrInvalidMagicLink
	}
	if p.ExpirationDate == "" {
		return "", domain.ErrInvalidMagicLink
	}
	expiration, err := time.Parse(time.RFC3339Nano, p.ExpirationDate)
	if err != nil {
		return "", domain.ErrInvalidMagicLink
	}
	if i.now().After(expiration) {
		return "", domain.ErrLinkExpired
	}
	if p.ValidationRequired && boundEmail != p.EmailAddress {
		return "", domain.ErrCrossSession
	}
	return p.EmailAddress, nil
}
