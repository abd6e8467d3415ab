package pagination

import (
	"context"
	"net/http"
)

type contextKey string

const paramsContextKey contextKey = "github.com/readify/api/internal/platform/pagination/params"

// WithParams stores the parsed pagination parameters on the context.
func WithParams(ctx context.Context, params Params) context.Context {
	return context.WithValue(ctx, paramsContextKey, params)
}

// FromContext retrieves pagination parameters previously attached via WithParams.
func FromContext(ctx context.Context) (Params, bool) {
	params, ok := ctx.Value(paramsContextKey).(Params)
	return params, ok
}

// FromContextOrDefault fetches pagination parameters or returns defaults when absent.
func FromContextOrDefault(ctx context.Context) Params {
	params, ok := FromContext(ctx)
	if !ok {
		return Params{Page: DefaultPage, Limit: DefaultLimit}
	}
	return params
}

// Middleware parses page and limit for list routes. Invalid values are reported through onError.
func Middleware(opts Options, onError func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			params, err := FromRequest(r, opts)
			if err != nil {
				if onError != nil {
					onError(w, r, err)
				} else {
					http.Error(w, err.Error(), http.StatusBadRequest)
				}
				return
			}
			next.ServeHTTP(w, r.WithContext(WithParams(r.Context(), params)))
		})
	}
}
