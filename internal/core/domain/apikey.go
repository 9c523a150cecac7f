package domain

import (
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidAPIKey      = errors.New("invalid api key")
	ErrInvalidAPIKeyField = errors.New("invalid api key field")
	ErrInvalidFilter      = errors.New("invalid filter")
	ErrNotFound           = errors.New("not found")
)

const (
	APIKeyIDPrefix = "stripekeys_mk_"

	dashboardBaseURL = "https://dashboard.stripe.com/"
)

// apiKeyPattern is anchored at the start only; trailing characters past the
// 99-char body are tolerated and bounded by the column length instead.
var apiKeyPattern = regexp.MustCompile(`^(pk|sk|rk)_(test|live)_([a-zA-Z0-9]{24,99})`)

type APIKeyType string

const (
	APIKeyTypePublishable APIKeyType = "publishable"
	APIKeyTypeSecret      APIKeyType = "secret"
	APIKeyTypeRestricted  APIKeyType = "restricted"
)

var keyTypeByPrefix = map[string]APIKeyType{
	"pk": APIKeyTypePublishable,
	"sk": APIKeyTypeSecret,
	"rk": APIKeyTypeRestricted,
}

func (t APIKeyType) Valid() bool {
	switch t {
	case APIKeyTypePublishable, APIKeyTypeSecret, APIKeyTypeRestricted:
		return true
	}
	return false
}

type APIKey struct {
	ID        string     `validate:"required,max=255"`
	Type      APIKeyType `validate:"required,oneof=publishable secret restricted"`
	Name      string     `validate:"max=100"`
	Secret    string     `validate:"required,max=128,stripe_api_key"`
	Livemode  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SecretRedacted returns the secret in the form shown on the Stripe dashboard.
func (k APIKey) SecretRedacted() string {
	return RedactSecret(k.Secret)
}

func (k APIKey) String() string {
	if k.Name != "" {
		return k.Name
	}
	return k.SecretRedacted()
}

func (k APIKey) DashboardURL() string {
	return DashboardBaseURL(k.Livemode) + "apikeys"
}

type APIKeyFilter struct {
	Type     APIKeyType
	Livemode *bool
	AfterID  string
	Limit    int
}

func (f APIKeyFilter) Validate() error {
	if f.Type != "" && !f.Type.Valid() {
		return fmt.Errorf("%w: unknown key type %q", ErrInvalidFilter, f.Type)
	}
	if f.AfterID != "" && !strings.HasPrefix(f.AfterID, APIKeyIDPrefix) {
		return fmt.Errorf("%w: malformed cursor", ErrInvalidFilter)
	}
	return nil
}

// GenerateAPIKeyID returns a random, URL-safe identifier prefixed with
// APIKeyIDPrefix.
func GenerateAPIKeyID() string {
	id := uuid.New()
	encoded := base64.StdEncoding.EncodeToString(id[:])
	encoded = strings.TrimRight(encoded, "=")
	encoded = strings.NewReplacer("+", "", "/", "").Replace(encoded)
	return APIKeyIDPrefix + encoded
}

// ParseAPIKeyDetails derives the key type and livemode from the secret prefix.
func ParseAPIKeyDetails(secret string) (APIKeyType, bool, error) {
	m := apiKeyPattern.FindStringSubmatch(secret)
	if m == nil {
		return "", false, ErrInvalidAPIKey
	}
	return keyTypeByPrefix[m[1]], m[2] == "live", nil
}

func IsValidAPIKey(secret string) bool {
	return apiKeyPattern.MatchString(secret)
}

func RedactSecret(secret string) string {
	prefix, tail := "", secret
	if i := strings.LastIndex(secret, "_"); i >= 0 {
		prefix, tail = secret[:i], secret[i+1:]
	}
	if len(tail) > 4 {
		tail = tail[len(tail)-4:]
	}
	return prefix + "_..." + tail
}

func DashboardBaseURL(livemode bool) string {
	if livemode {
		return dashboardBaseURL
	}
	return dashboardBaseURL + "test/"
}
