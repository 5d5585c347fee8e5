package network

import (
	"context"

	"github.com/luxfi/ids"
)

// AppSender is the outbound half of the network collaborator, reduced
// from the teacher's five-method Avalonche appsender.AppSender
// interface to the two shapes spec.md §6 actually needs: gossip (fire
// to a peer set) and rpc (point-to-point request/response).
type AppSender interface {
	// Gossip sends a codec-tagged blob to every node in peers on
	// endpoint, fire-and-forget.
	Gossip(ctx context.Context, endpoint string, peers []ids.NodeID, blob []byte) error

	// Request sends a codec-tagged blob to one node and returns its
	// response blob, or a FailError wrapping ReasonTimeout /
	// ReasonNotConnected if none arrives.
	Request(ctx context.Context, endpoint string, peer ids.NodeID, blob []byte) ([]byte, error)
}

// Handler processes one inbound blob for the endpoint it is registered
// under. peer is who it arrived from; the blob is already stripped of
// its endpoint tag.
type Handler func(ctx context.Context, peer ids.NodeID, blob []byte) error

// Router dispatches inbound codec-tagged blobs to a registered Handler
// by endpoint name, generalizing the teacher's
// chain_getter.go/chain_syncer.go dispatch-by-message-type idiom to
// spec.md §6's "each has a codec-registered handler that re-enters the
// adapter via a single channel into the BFT engine's inbound queue" —
// the channel itself lives behind whichever Handler a caller registers
// (typically one closing over consensus.Adapter's or mempool.Pool's
// inbound queue).
type Router struct {
	handlers map[string]Handler
}

// NewRouter builds an empty Router; call Register once per endpoint
// before traffic starts flowing.
func NewRouter() *Router {
	return &Router{handlers: make(map[string]Handler)}
}

// Register binds a Handler to an endpoint, replacing any prior one.
func (r *Router) Register(endpoint string, h Handler) {
	r.handlers[endpoint] = h
}

// Dispatch routes one inbound blob to its endpoint's Handler.
func (r *Router) Dispatch(ctx context.Context, endpoint string, peer ids.NodeID, blob []byte) error {
	h, ok := r.handlers[endpoint]
	if !ok {
		return ErrUnknownEndpoint
	}
	return h(ctx, peer, blob)
}
