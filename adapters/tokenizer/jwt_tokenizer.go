package tokenizer

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/layer-3/nostrauth/core"
)

// MinSecretLen is the shortest HMAC secret accepted.
const MinSecretLen = 32

// Config fixes the signing parameters shared by every token
type Config struct {
	Secret   []byte
	Issuer   string
	Audience string
	Leeway   time.Duration
	Now      func() time.Time // optional clock used when validating exp and iat
}

// JWTTokenizer implements the Tokenizer interface using HS256 JWTs
type JWTTokenizer struct {
	secret   []byte
	issuer   string
	audience string
	parser   *jwt.Parser
}

// NewJWTTokenizer creates a new JWT tokenizer
func NewJWTTokenizer(cfg Config) (*JWTTokenizer, error) {
	if len(cfg.Secret) < MinSecretLen {
		return nil, errors.New("jwt secret is too short")
	}
	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, errors.New("jwt issuer and audience are required")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithAudience(cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if cfg.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(cfg.Leeway))
	}
	if cfg.Now != nil {
		opts = append(opts, jwt.WithTimeFunc(cfg.Now))
	}

	return &JWTTokenizer{
		secret:   append([]byte(nil), cfg.Secret...),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		parser:   jwt.NewParser(opts...),
	}, nil
}

// SessionToAccessToken converts a Session to an access JWT token
func (j *JWTTokenizer) SessionToAccessToken(session *core.Session) (string, error) {
	claims := j.claims(session, TypeAccess, session.AccessID, session.AccessExpiry)
	claims.RefreshID = session.RefreshID

	signedToken, err := j.sign(claims)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signedToken, nil
}

// SessionToRefreshToken converts a Session to a refresh JWT token
func (j *JWTTokenizer) SessionToRefreshToken(session *core.Session) (string, error) {
	claims := j.claims(session, TypeRefresh, session.RefreshID, session.RefreshExpiry)

	signedToken, err := j.sign(claims)
	if err != nil {
		return "", fmt.Errorf("failed to sign refresh token: %w", err)
	}
	return signedToken, nil
}

// AccessTokenToSession parses an access token and returns the associated session
func (j *JWTTokenizer) AccessTokenToSession(tokenStr string) (*core.Session, error) {
	claims, err := j.parse(tokenStr, TypeAccess)
	if err != nil {
		return nil, err
	}

	session := j.session(claims)
	session.AccessID = claims.ID
	session.AccessExpiry = claims.ExpiresAt.Time
	session.RefreshID = claims.RefreshID
	return session, nil
}

// RefreshTokenToSession parses a refresh token and returns the associated session
func (j *JWTTokenizer) RefreshTokenToSession(tokenStr string) (*core.Session, error) {
	claims, err := j.parse(tokenStr, TypeRefresh)
	if err != nil {
		return nil, err
	}

	session := j.session(claims)
	session.RefreshID = claims.ID // The JWT ID is the refresh token ID
	session.RefreshExpiry = claims.ExpiresAt.Time
	return session, nil
}

func (j *JWTTokenizer) claims(session *core.Session, typ, id string, expiresAt time.Time) SessionClaims {
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			Subject:   session.Subject,
			Audience:  jwt.ClaimStrings{j.audience},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			ID:        id,
		},
		Type:      typ,
		SessionID: session.ID,
		Nip05:     session.Nip05,
	}
	if session.Role.Valid() {
		claims.Role = session.Role.String()
	}
	return claims
}

func (j *JWTTokenizer) sign(claims SessionClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
}

func (j *JWTTokenizer) parse(tokenStr, typ string) (*SessionClaims, error) {
	token, err := j.parser.ParseWithClaims(tokenStr, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, core.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, core.ErrInvalidToken
	}
	if claims.Type != typ || claims.ID == "" || claims.SessionID == "" {
		return nil, core.ErrInvalidToken
	}
	return claims, nil
}

func (j *JWTTokenizer) session(claims *SessionClaims) *core.Session {
	session := &core.Session{
		ID:      claims.SessionID,
		Subject: claims.Subject,
		Nip05:   claims.Nip05,
	}
	if claims.IssuedAt != nil {
		session.IssuedAt = claims.IssuedAt.Time
	}
	if role, err := core.ParseRole(claims.Role); err == nil {
		session.Role = role
	}
	return session
}
