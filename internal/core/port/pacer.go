package port

import "context"

// PacerPort gates outbound requests. Wait blocks until the configured
// minimum spacing since the previous permitted request has elapsed, or until
// ctx is cancelled.
type PacerPort interface {
	Wait(ctx context.Context) error
}
