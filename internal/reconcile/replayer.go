package reconcile

import (
	"context"

	"github.com/roach88/precedent-offline/internal/store"
)

//go:generate mockgen -source=replayer.go -destination=mock/replayer_mock.go -package=mock

// Replayer delivers one pending action to its endpoint.
// Implemented by remote.Client.
type Replayer interface {
	Replay(ctx context.Context, endpoint string, action store.PendingAction) error
}
