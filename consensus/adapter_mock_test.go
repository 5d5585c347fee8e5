package consensus_test

import (
	"context"
	"testing"

	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/mutanet/mutacore/consensus"
	"github.com/mutanet/mutacore/network/networkmock"
	"github.com/mutanet/mutacore/validators"
)

// TestAdapterBroadcastUsesGeneratedAppSenderMock exercises
// Adapter.Broadcast/Transmit against a go.uber.org/mock-generated
// double instead of the package's hand-written fakeSender, matching
// the teacher's own mixed use of gomock (validator/validatorsmock)
// alongside hand-rolled fakes (networking/sender/sendermock) for the
// same kind of collaborator.
func TestAdapterBroadcastUsesGeneratedAppSenderMock(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := networkmock.NewMockAppSender(ctrl)

	executor := consensus.NewBlockExecutor(fakeExecutor{})
	agent := consensus.NewStatusAgent(consensus.CurrentConsensusStatus{})
	vmgr := validators.New()
	a := consensus.NewAdapter(newFakeStorage(), &fakeMempool{}, executor, agent, vmgr, sender, nil, nil)

	peer := ids.NodeID{7}
	a.SetPeers([]ids.NodeID{peer})

	sender.EXPECT().
		Gossip(gomock.Any(), "/gossip/consensus/signed_proposal", []ids.NodeID{peer}, []byte("proposal-blob")).
		Return(nil)
	require.NoError(t, a.Broadcast(context.Background(), "/gossip/consensus/signed_proposal", []byte("proposal-blob")))

	sender.EXPECT().
		Request(gomock.Any(), "/rpc_call/consensus/sync_pull_block", peer, []byte("pull-blob")).
		Return([]byte("reply"), nil)
	reply, err := a.Transmit(context.Background(), "/rpc_call/consensus/sync_pull_block", peer, []byte("pull-blob"))
	require.NoError(t, err)
	require.Equal(t, []byte("reply"), reply)
}
