package interfaces

import "context"

// DiagnosticSink receives fire-and-forget diagnostic records.
// keyvals are alternating key/value pairs.
type DiagnosticSink interface {
	Log(ctx context.Context, msg string, keyvals ...any)
}
