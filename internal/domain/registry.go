package domain

import (
	"sync"

	"github.com/JeffersonLab/cmsg-go/internal/cmsgerr"
)

// Registry is the (domain name -> Capability) table of spec §4.2, held in
// a map. The permanent domains are registered once per process under mu;
// other domains are resolved on demand through Loader.
type Registry struct {
	mu      sync.Mutex
	vectors map[string]Capability
	nextID  uint64
}

// Loader resolves a non-built-in domain name to a Capability by locating
// a shared module named after it and extracting its cmsg_<domain>_<op>
// symbols (spec §4.2, §6; implemented in plugin_dynamic.go). A Registry
// with a nil Loader fails unknown-domain lookups with NoClassFound.
type Loader func(domainName string) (Capability, error)

var global = NewRegistry()

// NewRegistry constructs an empty registry. Production code uses the
// package-level Global(); tests build their own to avoid cross-test
// pollution of the process-wide table.
func NewRegistry() *Registry {
	return &Registry{vectors: make(map[string]Capability)}
}

// Global returns the process-wide registry used by pkg/cmsg.
func Global() *Registry { return global }

// Register installs a capability vector for a domain name, used once at
// process start for the built-in cmsg and rc domains. Registering
// the same name twice is a no-op: the first registration wins.
func (r *Registry) Register(name string, cap Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.vectors[name]; exists {
		return
	}
	r.vectors[name] = cap
}

// Lookup returns the capability vector for a domain name, invoking
// loader for a name not yet registered (spec §4.2: "Other domains are
// registered on demand").
func (r *Registry) Lookup(name string, loader Loader) (Capability, error) {
	r.mu.Lock()
	cap, ok := r.vectors[name]
	r.mu.Unlock()
	if ok {
		return cap, nil
	}
	if loader == nil {
		return nil, cmsgerr.Newf(cmsgerr.NoClassFound, "domain %q is not registered and no loader is configured", name)
	}
	cap, err := loader(name)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.vectors[name]; ok {
		return existing, nil
	}
	r.vectors[name] = cap
	return cap, nil
}

// NextID hands out a process-local unique id, guarded by the same mutex
// spec §5 describes as serving both registration and id allocation.
func (r *Registry) NextID() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	return r.nextID
}
