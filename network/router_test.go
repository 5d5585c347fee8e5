package network_test

import (
	"context"
	"testing"

	"github.com/luxfi/ids"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mutanet/mutacore/network"
)

func TestRouterDispatchesToRegisteredHandler(t *testing.T) {
	r := network.NewRouter()
	var gotPeer ids.NodeID
	var gotBlob []byte
	r.Register(network.EndpointMempoolNewTxs, func(_ context.Context, peer ids.NodeID, blob []byte) error {
		gotPeer = peer
		gotBlob = blob
		return nil
	})

	peer := ids.NodeID{1, 2, 3}
	err := r.Dispatch(context.Background(), network.EndpointMempoolNewTxs, peer, []byte("payload"))
	require.NoError(t, err)
	assert.Equal(t, peer, gotPeer)
	assert.Equal(t, []byte("payload"), gotBlob)
}

func TestRouterReportsUnknownEndpoint(t *testing.T) {
	r := network.NewRouter()
	err := r.Dispatch(context.Background(), network.EndpointSignedChoke, ids.NodeID{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, network.ErrUnknownEndpoint)
}
