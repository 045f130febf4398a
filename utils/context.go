package utils

// ContextKey is the type for request-scoped context values
type ContextKey string

// Context keys set by the HTTP layer for downstream flows
const (
	RequestIDKey ContextKey = "request_id"
	UserAgentKey ContextKey = "user_agent"
	IPAddressKey ContextKey = "ip_address"
	EndpointKey  ContextKey = "endpoint"
	TimeoutKey   ContextKey = "timeout"
	// CancelFuncKey carries the request context's cancel func so deferred
	// cleanup can release it
	CancelFuncKey ContextKey = "cancel_func"
)
