package gateway

import "context"

// ClientInfo describes the browser behind a registration request.
type ClientInfo struct {
	UserAgent string
	IPAddress string
}

type clientKey struct{}

func WithClient(ctx context.Context, info ClientInfo) context.Context {
	return context.WithValue(ctx, clientKey{}, info)
}

func clientFromContext(ctx context.Context) ClientInfo {
	info, _ := ctx.Value(clientKey{}).(ClientInfo)
	return info
}
