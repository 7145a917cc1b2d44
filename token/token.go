package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"vidstream/entities"
)

// StreamTokenTTL is fixed: stream tokens are short-lived capabilities and
// clients re-request a new one instead of refreshing.
const StreamTokenTTL = time.Hour

// Identity is the authenticated principal produced by session verification
// and passed explicitly into handlers.
type Identity struct {
	UserID   int64
	Username string
	Admin    bool
}

// Codec signs and verifies both token kinds against a single HMAC secret.
type Codec struct {
	secret     []byte
	sessionTTL time.Duration
}

func NewCodec(secret string, sessionTTL time.Duration) *Codec {
	if sessionTTL <= 0 {
		sessionTTL = 30 * time.Minute
	}
	return &Codec{secret: []byte(secret), sessionTTL: sessionTTL}
}

// IssueSession mints a session token for the given principal.
func (c *Codec) IssueSession(username string, userID int64, admin bool) (string, time.Time, error) {
	expiresAt := time.Now().Add(c.sessionTTL)
	claims := jwt.MapClaims{
		"sub":      username,
		"user_id":  userID,
		"is_admin": admin,
		"exp":      jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, expiresAt, nil
}

// VerifySession validates a session token and returns the principal it
// carries. Every failure mode maps to ErrUnauthorized.
func (c *Codec) VerifySession(raw string) (Identity, error) {
	claims, err := c.parse(raw)
	if err != nil {
		return Identity{}, err
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return Identity{}, fmt.Errorf("%w: missing subject claim", entities.ErrUnauthorized)
	}
	userID, ok := numericClaim(claims, "user_id")
	if !ok {
		return Identity{}, fmt.Errorf("%w: missing user_id claim", entities.ErrUnauthorized)
	}
	admin, _ := claims["is_admin"].(bool)

	return Identity{UserID: userID, Username: sub, Admin: admin}, nil
}

// IssueStream mints a capability token scoped to a single media item.
func (c *Codec) IssueStream(mediaID, userID int64) (string, time.Time, error) {
	expiresAt := time.Now().Add(StreamTokenTTL)
	claims := jwt.MapClaims{
		"media_id": mediaID,
		"user_id":  userID,
		"exp":      jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign stream token: %w", err)
	}
	return signed, expiresAt, nil
}

// VerifyStream validates a stream token and checks that its media_id claim
// matches the item actually being streamed. A token minted for one item
// must never open another.
func (c *Codec) VerifyStream(raw string, wantMediaID int64) error {
	claims, err := c.parse(raw)
	if err != nil {
		return err
	}

	mediaID, ok := numericClaim(claims, "media_id")
	if !ok {
		return fmt.Errorf("%w: missing media_id claim", entities.ErrUnauthorized)
	}
	if mediaID != wantMediaID {
		return fmt.Errorf("%w: token not valid for this media item", entities.ErrUnauthorized)
	}
	return nil
}

func (c *Codec) parse(raw string) (jwt.MapClaims, error) {
	parsed, err := jwt.Parse(raw,
		func(t *jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token expired", entities.ErrUnauthorized)
		}
		return nil, fmt.Errorf("%w: invalid token", entities.ErrUnauthorized)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: invalid token claims", entities.ErrUnauthorized)
	}
	return claims, nil
}

// numericClaim reads an integer claim; JSON decoding hands numbers back as
// float64.
func numericClaim(claims jwt.MapClaims, key string) (int64, bool) {
	switch v := claims[key].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	default:
		return 0, false
	}
}
