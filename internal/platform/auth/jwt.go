package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	jwt "github.com/golang-jwt/jwt/v4"
)

// JWTVerifier validates signed bearer tokens. The user id is read from user_id with sub as
// fallback and the role from the configured role claim.
type JWTVerifier struct {
	keyfunc func(ctx context.Context) jwt.Keyfunc
	methods []string
	cfg     claimsConfig
}

// NewHMACVerifier verifies HS256 tokens signed with a shared secret.
func NewHMACVerifier(secret []byte, opts ...JWTOption) (*JWTVerifier, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: jwt secret is required")
	}
	key := append([]byte(nil), secret...)
	return newJWTVerifier(func(context.Context) jwt.Keyfunc {
		return func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method %v", token.Header["alg"])
			}
			return key, nil
		}
	}, []string{jwt.SigningMethodHS256.Alg()}, opts), nil
}

// NewJWKSVerifier verifies RS256 tokens whose keys are published as a JWKS document.
func NewJWKSVerifier(cache *JWKSCache, opts ...JWTOption) (*JWTVerifier, error) {
	if cache == nil {
		return nil, errors.New("auth: jwks cache is required")
	}
	return newJWTVerifier(cache.Keyfunc, []string{jwt.SigningMethodRS256.Alg()}, opts), nil
}

func newJWTVerifier(keyfunc func(context.Context) jwt.Keyfunc, methods []string, opts []JWTOption) *JWTVerifier {
	cfg := defaultClaimsConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &JWTVerifier{keyfunc: keyfunc, methods: methods, cfg: cfg}
}

// Verify implements TokenVerifier.
func (v *JWTVerifier) Verify(ctx context.Context, tokenString string) (*Identity, error) {
	if v == nil {
		return nil, ErrVerifierUnavailable
	}
	parser := jwt.NewParser(jwt.WithValidMethods(v.methods), jwt.WithoutClaimsValidation())
	claims := jwt.MapClaims{}
	if _, err := parser.ParseWithClaims(tokenString, claims, v.keyfunc(ctx)); err != nil {
		if errors.Is(err, ErrJWKSFetchFailed) {
			return nil, fmt.Errorf("%w: %v", ErrVerifierUnavailable, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	now := v.cfg.now().Unix()
	if !claims.VerifyExpiresAt(now, false) {
		return nil, ErrTokenExpired
	}
	if !claims.VerifyNotBefore(now, false) {
		return nil, fmt.Errorf("%w: token not yet valid", ErrTokenInvalid)
	}
	if v.cfg.issuer != "" && !claims.VerifyIssuer(v.cfg.issuer, true) {
		return nil, fmt.Errorf("%w: issuer mismatch", ErrTokenInvalid)
	}
	if v.cfg.audience != "" && !claims.VerifyAudience(v.cfg.audience, true) {
		return nil, fmt.Errorf("%w: audience mismatch", ErrTokenInvalid)
	}

	uid := claimAsString(claims, "user_id")
	if uid == "" {
		uid = claimAsString(claims, "sub")
	}
	if uid == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrTokenInvalid)
	}
	return &Identity{
		UID:    uid,
		Email:  strings.ToLower(claimAsString(claims, "email")),
		Role:   roleFromClaims(claims, v.cfg.roleClaim),
		Claims: cloneClaims(claims),
	}, nil
}
