// Package close is a notification hook invoked when a module is closed.
package close

import (
	"context"

	"github.com/tinygo-wasm/tinywasm/internal/close"
)

// Notification is called before an api.Module is closed.
type Notification interface {
	// OnClose is a notification that occurs *before* a module is closed.
	// exitCode is zero on success or when there was no exit code.
	//
	// Notes:
	//   - This does not return an error because the module is closed
	//     unconditionally.
	//   - Do not panic from this function: doing so could leak resources.
	OnClose(ctx context.Context, exitCode uint32)
}

// NotificationFunc is a convenience for defining an inline Notification.
type NotificationFunc func(ctx context.Context, exitCode uint32)

// OnClose implements Notification.OnClose.
func (f NotificationFunc) OnClose(ctx context.Context, exitCode uint32) {
	f(ctx, exitCode)
}

// WithNotification registers notification into ctx, so that
// Runtime.InstantiateModule's returned Module reports its close through
// notification.OnClose instead of silently discarding its exit code.
func WithNotification(ctx context.Context, notification Notification) context.Context {
	if notification != nil {
		return context.WithValue(ctx, close.NotificationKey{}, notification)
	}
	return ctx
}
