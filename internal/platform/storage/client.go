package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

const (
	defaultCoverURLTTL = 15 * time.Minute
	maxSignedURLTTL    = 7 * 24 * time.Hour
)

var (
	errNoSigner      = errors.New("storage: signer is required")
	errExpiryTooLong = errors.New("storage: expiry exceeds permitted maximum")
)

// CoverURLs turns book image references into URLs a browser can load. Absolute http(s) URLs pass
// through unchanged; storage references are signed for read access.
type CoverURLs struct {
	signer Signer
	bucket string
	ttl    time.Duration
	scheme storage.SigningScheme
	now    func() time.Time
}

// Option customises CoverURLs.
type Option func(*CoverURLs)

// WithTTL overrides how long signed URLs stay valid.
func WithTTL(ttl time.Duration) Option {
	return func(c *CoverURLs) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithSigningScheme overrides the signing scheme (defaults to V4).
func WithSigningScheme(scheme storage.SigningScheme) Option {
	return func(c *CoverURLs) {
		if scheme != 0 {
			c.scheme = scheme
		}
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) Option {
	return func(c *CoverURLs) {
		if clock != nil {
			c.now = clock
		}
	}
}

// NewCoverURLs builds a resolver signing objects of bucket. A nil signer yields a resolver that
// only passes public URLs through.
func NewCoverURLs(signer Signer, bucket string, opts ...Option) (*CoverURLs, error) {
	c := &CoverURLs{
		signer: signer,
		bucket: strings.TrimSpace(bucket),
		ttl:    defaultCoverURLTTL,
		scheme: storage.SigningSchemeV4,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.ttl > maxSignedURLTTL {
		return nil, errExpiryTooLong
	}
	return c, nil
}

// CoverURL resolves one image reference.
func (c *CoverURLs) CoverURL(ctx context.Context, image string) (string, error) {
	image = strings.TrimSpace(image)
	if image == "" {
		return "", errors.New("storage: image reference is empty")
	}
	if IsPublicURL(image) {
		return image, nil
	}
	if c == nil || c.signer == nil || strings.TrimSpace(c.signer.Email()) == "" {
		return "", errNoSigner
	}

	ref, err := ParseObjectRef(image, c.bucket)
	if err != nil {
		return "", err
	}

	signed, err := storage.SignedURL(ref.Bucket, ref.Object, &storage.SignedURLOptions{
		GoogleAccessID: c.signer.Email(),
		Method:         "GET",
		Scheme:         c.scheme,
		Expires:        c.now().Add(c.ttl),
		SignBytes: func(payload []byte) ([]byte, error) {
			return c.signer.SignBytes(ctx, payload)
		},
	})
	if err != nil {
		return "", fmt.Errorf("storage: sign cover url: %w", err)
	}
	return signed, nil
}
