package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	domain "github.com/readify/api/internal/domain"
	"github.com/readify/api/internal/platform/auth"
	"github.com/readify/api/internal/platform/httpx"
	"github.com/readify/api/internal/platform/observability"
	"github.com/readify/api/internal/platform/pagination"
	"github.com/readify/api/internal/services"
)

// HandlerOption customises the middleware applied by a handler group.
type HandlerOption func(*handlerConfig)

type handlerConfig struct {
	mutations   []func(http.Handler) http.Handler
	idempotency func(http.Handler) http.Handler
	paging      pagination.Options
}

// WithMutationMiddlewares adds middleware run before every state-changing route, after
// authentication. The rate limiter is installed this way.
func WithMutationMiddlewares(mw ...func(http.Handler) http.Handler) HandlerOption {
	return func(cfg *handlerConfig) {
		for _, m := range mw {
			if m != nil {
				cfg.mutations = append(cfg.mutations, m)
			}
		}
	}
}

// WithIdempotency installs the idempotency middleware on creation routes.
func WithIdempotency(mw func(http.Handler) http.Handler) HandlerOption {
	return func(cfg *handlerConfig) {
		cfg.idempotency = mw
	}
}

// WithPagination overrides the page size defaults for list routes.
func WithPagination(opts pagination.Options) HandlerOption {
	return func(cfg *handlerConfig) {
		cfg.paging = opts
	}
}

func newHandlerConfig(opts []HandlerOption) handlerConfig {
	cfg := handlerConfig{
		paging: pagination.Options{DefaultLimit: pagination.DefaultLimit, MaxLimit: pagination.DefaultMaxLimit},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

func (cfg handlerConfig) mutating(extra ...func(http.Handler) http.Handler) []func(http.Handler) http.Handler {
	chain := append([]func(http.Handler) http.Handler(nil), cfg.mutations...)
	for _, mw := range extra {
		if mw != nil {
			chain = append(chain, mw)
		}
	}
	return chain
}

func (cfg handlerConfig) paginate() func(http.Handler) http.Handler {
	return pagination.Middleware(cfg.paging, func(w http.ResponseWriter, r *http.Request, err error) {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_pagination", err.Error(), http.StatusBadRequest))
	})
}

func requireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := auth.IdentityFromContext(r.Context())
			if !ok || identity == nil {
				httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
				return
			}
			if !identity.HasAnyRole(roles...) {
				httpx.WriteError(r.Context(), w, httpx.NewError("insufficient_role", fmt.Sprintf("requires role %s", strings.Join(roles, " or ")), http.StatusForbidden))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// actorFromRequest returns the authenticated actor or writes a 401 and reports false.
func actorFromRequest(w http.ResponseWriter, r *http.Request) (domain.Actor, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return domain.Actor{}, false
	}
	return domain.Actor{
		ID:   strings.TrimSpace(identity.UID),
		Role: domain.Role(strings.ToLower(strings.TrimSpace(identity.Role))),
	}, true
}

func pageRequest(r *http.Request) domain.PageRequest {
	params := pagination.FromContextOrDefault(r.Context())
	return domain.PageRequest{Page: params.Page, Limit: params.Limit}
}

func paginationOf[T any](page domain.Page[T]) *httpx.Pagination {
	return &httpx.Pagination{
		Total:      page.Total,
		Page:       page.Page,
		Limit:      page.Limit,
		TotalPages: page.TotalPages,
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// decodeRequest decodes and validates a JSON body, writing a 400 when either step fails.
func decodeRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	ctx := r.Context()
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return false
	}
	if err := validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
			return false
		}
		fields := make(map[string]string, len(fieldErrs))
		for _, fe := range fieldErrs {
			fields[fieldPath(fe)] = fe.Tag()
		}
		httpx.WriteError(ctx, w, httpx.NewError(string(services.KindValidation), describeFieldError(fieldErrs[0]), http.StatusBadRequest).
			WithDetails(map[string]any{"fields": fields}))
		return false
	}
	return true
}

// fieldPath drops the root struct name from the namespace ("createOrderRequest.items[0].bookId").
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func describeFieldError(fe validator.FieldError) string {
	field := fieldPath(fe)
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min", "gte":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at least %s entries", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max", "lte":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// writeServiceError maps service error kinds onto HTTP errors.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	kind := services.KindOf(err)
	message := "something went wrong"
	var svcErr *services.Error
	if errors.As(err, &svcErr) && kind != services.KindUnexpected {
		message = svcErr.Message
	}
	if kind == services.KindUnexpected || kind == services.KindConflict {
		observability.FromContext(ctx).Warn("request failed", zap.String("kind", string(kind)), zap.Error(err))
	}
	httpx.WriteError(ctx, w, httpx.NewError(string(kind), message, kind.Status()))
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil || t.IsZero() {
		return nil
	}
	s := formatTime(*t)
	return &s
}
