package storage

import (
	"fmt"
	"net/url"
	"strings"
)

// ObjectRef locates an object in Cloud Storage.
type ObjectRef struct {
	Bucket string
	Object string
}

// ParseObjectRef accepts "gs://bucket/object" or a bare object name, which is placed in
// defaultBucket.
func ParseObjectRef(raw, defaultBucket string) (ObjectRef, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ObjectRef{}, fmt.Errorf("storage: object reference is empty")
	}

	ref := ObjectRef{Bucket: strings.TrimSpace(defaultBucket), Object: strings.TrimPrefix(raw, "/")}
	if strings.HasPrefix(raw, "gs://") {
		bucket, object, ok := strings.Cut(strings.TrimPrefix(raw, "gs://"), "/")
		if !ok {
			return ObjectRef{}, fmt.Errorf("storage: object reference %q has no object name", raw)
		}
		ref = ObjectRef{Bucket: bucket, Object: object}
	}

	if ref.Bucket == "" {
		return ObjectRef{}, fmt.Errorf("storage: bucket is required for %q", raw)
	}
	if strings.ContainsAny(ref.Bucket, "/\\") {
		return ObjectRef{}, fmt.Errorf("storage: bucket %q contains invalid characters", ref.Bucket)
	}
	if ref.Object == "" {
		return ObjectRef{}, fmt.Errorf("storage: object name is required for %q", raw)
	}
	for _, segment := range strings.Split(ref.Object, "/") {
		if segment == ".." || segment == "." {
			return ObjectRef{}, fmt.Errorf("storage: object %q contains a traversal segment", ref.Object)
		}
	}
	return ref, nil
}

// IsPublicURL reports whether raw is already an absolute http(s) URL.
func IsPublicURL(raw string) bool {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}
