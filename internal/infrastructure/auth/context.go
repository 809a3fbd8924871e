package auth

import "context"

type tokenKey struct{}

// WithBearerToken stores the raw operator token so outgoing backend calls can forward it
func WithBearerToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// BearerToken returns the token stored by WithBearerToken
func BearerToken(ctx context.Context) (string, bool) {
	t, ok := ctx.Value(tokenKey{}).(string)
	return t, ok && t != ""
}
