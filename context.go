package authcore

import "context"

type contextKey int

const (
	clientIPKey contextKey = iota
	userAgentKey
)

// WithClientIP records the caller's IP address on the context. The engine
// uses it for session origin binding, risk scoring and audit events.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIPFromContext returns the IP recorded by WithClientIP, if any.
func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}

// WithUserAgent records the caller's user agent on the context.
func WithUserAgent(ctx context.Context, agent string) context.Context {
	return context.WithValue(ctx, userAgentKey, agent)
}

// UserAgentFromContext returns the agent recorded by WithUserAgent, if any.
func UserAgentFromContext(ctx context.Context) string {
	agent, _ := ctx.Value(userAgentKey).(string)
	return agent
}
