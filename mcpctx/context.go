// Package mcpctx carries per-call driver flags through a context.
package mcpctx

import "context"

type ctxIndex int

const (
	ctxIndexVerbose ctxIndex = iota
	ctxIndexCaller
)

// IsVerbose reports whether frames exchanged under ctx should be dumped.
func IsVerbose(ctx context.Context) bool {
	val, ok := ctx.Value(ctxIndexVerbose).(bool)
	return ok && val
}

func SetVerbose(ctx context.Context, value bool) context.Context {
	return context.WithValue(ctx, ctxIndexVerbose, value)
}

// SetCaller tags ctx with the name of the component issuing bus traffic. It
// only shows up in logs.
func SetCaller(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, ctxIndexCaller, name)
}

// Caller returns the tag set with SetCaller or an empty string.
func Caller(ctx context.Context) string {
	val, _ := ctx.Value(ctxIndexCaller).(string)
	return val
}
