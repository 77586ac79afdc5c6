package usecase

import "context"

// RequestSource identifies the client behind an inbound operation.
type RequestSource struct {
	IP        string
	UserAgent string
}

type requestSourceKey struct{}

// ContextWithSource attaches the caller's network identity to ctx.
func ContextWithSource(ctx context.Context, src RequestSource) context.Context {
	return context.WithValue(ctx, requestSourceKey{}, src)
}

// SourceFromContext returns the caller identity stored on ctx, or the zero value.
func SourceFromContext(ctx context.Context) RequestSource {
	if ctx == nil {
		return RequestSource{}
	}
	src, _ := ctx.Value(requestSourceKey{}).(RequestSource)
	return src
}
