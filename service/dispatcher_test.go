package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mutanet/mutacore/service"
	"github.com/mutanet/mutacore/state"
	"github.com/mutanet/mutacore/types"
)

func counterService(cost uint64) *service.Service {
	return &service.Service{
		Name: "counter",
		Genesis: func(sdk *service.SDK, payload string) service.ServiceResponse {
			sdk.Insert([]byte("count"), []byte("0"))
			return service.Succeed("")
		},
		Methods: map[string]service.MethodBinding{
			"overrun": {
				Kind:      service.WriteMethod,
				CycleCost: cost,
				Handler: func(sdk *service.SDK, payload string) service.ServiceResponse {
					sdk.Insert([]byte("should-not-persist"), []byte("1"))
					return service.Succeed("ok")
				},
			},
			"recurse": {
				Kind: service.WriteMethod,
				Handler: func(sdk *service.SDK, payload string) service.ServiceResponse {
					return sdk.CallService("counter", "recurse", payload)
				},
			},
		},
	}
}

func hookOrderServices(trace *[]string) []*service.Service {
	mk := func(name string) *service.Service {
		return &service.Service{
			Name:       name,
			BeforeHook: func(sdk *service.SDK) error { *trace = append(*trace, name+":before"); return nil },
			AfterHook:  func(sdk *service.SDK) error { *trace = append(*trace, name+":after"); return nil },
			Methods: map[string]service.MethodBinding{
				"noop": {Kind: service.WriteMethod, Handler: func(sdk *service.SDK, payload string) service.ServiceResponse {
					*trace = append(*trace, name+":dispatch")
					return service.Succeed("")
				}},
			},
		}
	}
	return []*service.Service{mk("a"), mk("b"), mk("c")}
}

func newDispatcher(t *testing.T, svcs ...*service.Service) (*service.Dispatcher, *state.Store) {
	t.Helper()
	store := state.NewStore(state.NewMemNodeStore(), types.FromEmpty())
	reg := service.NewRegistry()
	for _, s := range svcs {
		reg.Register(s)
	}
	return service.NewDispatcher(reg, store), store
}

func signedTx(serviceName, method, payload string, cyclesLimit uint64) types.SignedTransaction {
	raw := types.RawTransaction{
		ChainID:     types.FromEmpty(),
		CyclesPrice: 1,
		CyclesLimit: cyclesLimit,
		Timeout:     1000,
		Request:     types.TransactionRequest{ServiceName: serviceName, Method: method, Payload: payload},
	}
	return types.SignedTransaction{Raw: raw, TxHash: types.Keccak256([]byte(serviceName + method + payload))}
}

func TestGenesisRunsInDeclarationOrder(t *testing.T) {
	var trace []string
	svcs := hookOrderServices(&trace)
	for _, s := range svcs {
		name := s.Name
		s.Genesis = func(sdk *service.SDK, payload string) service.ServiceResponse {
			trace = append(trace, name+":genesis")
			return service.Succeed("")
		}
	}
	dispatcher, _ := newDispatcher(t, svcs...)
	root, err := dispatcher.RunGenesis(types.FromEmpty(), types.Address{}, nil)
	require.NoError(t, err)
	assert.NotEqual(t, types.FromEmpty(), root)
	assert.Equal(t, []string{"a:genesis", "b:genesis", "c:genesis"}, trace)
}

func TestHookOrderingAroundDispatch(t *testing.T) {
	var trace []string
	svcs := hookOrderServices(&trace)
	dispatcher, _ := newDispatcher(t, svcs...)

	header := types.BlockHeader{ChainID: types.FromEmpty(), Height: 1}
	tx := signedTx("b", "noop", "", 1_000_000)
	receipt := dispatcher.Invoke(header, tx)

	require.False(t, receipt.Response.IsError)
	assert.Equal(t, []string{"a:before", "b:before", "c:before", "b:dispatch", "a:after", "b:after", "c:after"}, trace)
}

func TestOutOfCyclesRevertsWrites(t *testing.T) {
	counter := counterService(1)
	dispatcher, store := newDispatcher(t, counter)
	_, err := dispatcher.RunGenesis(types.FromEmpty(), types.Address{}, nil)
	require.NoError(t, err)

	header := types.BlockHeader{ChainID: types.FromEmpty(), Height: 1}
	tx := signedTx("counter", "overrun", "", 0)
	receipt := dispatcher.Invoke(header, tx)

	assert.True(t, receipt.Response.IsError)
	svc := store.Service("counter")
	_, ok := svc.Get([]byte("should-not-persist"))
	assert.False(t, ok, "a reverted tx must not leave its writes behind")
}

func TestNestedCallDepthCap(t *testing.T) {
	counter := counterService(0)
	dispatcher, _ := newDispatcher(t, counter)
	_, err := dispatcher.RunGenesis(types.FromEmpty(), types.Address{}, nil)
	require.NoError(t, err)

	header := types.BlockHeader{ChainID: types.FromEmpty(), Height: 1}
	tx := signedTx("counter", "recurse", "", ^uint64(0))
	receipt := dispatcher.Invoke(header, tx)
	assert.True(t, receipt.Response.IsError)
}

func TestUnknownServiceAndMethodFail(t *testing.T) {
	dispatcher, _ := newDispatcher(t)
	header := types.BlockHeader{ChainID: types.FromEmpty(), Height: 1}
	tx := signedTx("nope", "nope", "", 1000)
	receipt := dispatcher.Invoke(header, tx)
	assert.True(t, receipt.Response.IsError)
}
