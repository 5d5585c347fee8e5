package service

// MethodKind labels a method as a read or a write method. The
// Dispatcher does not check it: a ReadMethod handler reached through
// Invoke can write through its SDK like a WriteMethod.
type MethodKind int

const (
	// ReadMethod may only call ServiceState.Get / GetAccountValue.
	ReadMethod MethodKind = iota
	// WriteMethod may also Insert/Remove/SetAccountValue.
	WriteMethod
)

// HandlerFunc is the signature every genesis/hook/read/write method
// implements. It receives the SDK bound to the current InvokeContext
// and the raw JSON payload and returns a ServiceResponse.
type HandlerFunc func(sdk *SDK, payload string) ServiceResponse

// HookFunc is the signature of a before/after hook. Hooks run for
// side effects only; a non-nil error aborts the whole transaction.
type HookFunc func(sdk *SDK) error

// MethodBinding pairs a method's access kind and fixed cycle cost
// with its handler. CycleCost is charged to the shared cycles_used
// cell before the handler runs, whether this is a top-level dispatch
// or a nested call (spec.md §4.B "each nested call adds its own cost
// to the shared cycles_used cell").
type MethodBinding struct {
	Kind      MethodKind
	CycleCost uint64
	Handler   HandlerFunc
}

// Service is one native-code service: a name, an optional genesis
// initializer, optional before/after hooks, and a table of callable
// methods.
type Service struct {
	Name       string
	Genesis    HandlerFunc
	BeforeHook HookFunc
	AfterHook  HookFunc
	Methods    map[string]MethodBinding
}

// Registry is the static, declaration-ordered service table spec.md
// §4.B calls for in place of the source's macro-generated mount
// points. Declaration order governs both genesis execution order and
// before/after hook execution order for every transaction.
type Registry struct {
	order    []string
	services map[string]*Service
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{services: make(map[string]*Service)}
}

// Register adds svc, appending it to the declaration order. Register
// panics on a duplicate name: that is a wiring bug, not a runtime
// condition.
func (r *Registry) Register(svc *Service) {
	if _, exists := r.services[svc.Name]; exists {
		panic("service: duplicate service name " + svc.Name)
	}
	r.order = append(r.order, svc.Name)
	r.services[svc.Name] = svc
}

// Lookup returns the named service, if registered.
func (r *Registry) Lookup(name string) (*Service, bool) {
	svc, ok := r.services[name]
	return svc, ok
}

// Ordered returns every registered service in declaration order.
func (r *Registry) Ordered() []*Service {
	out := make([]*Service, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.services[name])
	}
	return out
}
