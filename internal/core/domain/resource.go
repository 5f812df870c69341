package domain

import "net/url"

// ResourceName identifies an abstract collection the console operates on.
type ResourceName string

// Resources with a backend endpoint.
const (
	ResourceProducts    ResourceName = "products"
	ResourceOrders      ResourceName = "orders"
	ResourceCustomers   ResourceName = "customers"
	ResourceCoupons     ResourceName = "coupons"
	ResourceEmployees   ResourceName = "employees"
	ResourceStores      ResourceName = "stores"
	ResourceCallClients ResourceName = "call-clients"
	ResourceCalls       ResourceName = "calls"
	ResourceUsers       ResourceName = "users"
)

// Console resources without a backend endpoint yet. Operations on them
// take the unmapped fallback path.
const (
	ResourceCommissions ResourceName = "commissions"
	ResourceBonuses     ResourceName = "bonuses"
	ResourceTargets     ResourceName = "targets"
)

// ResourceMapping associates a resource with its endpoint and the keys
// the backend nests payloads under.
type ResourceMapping struct {
	Name ResourceName
	Path string
	// ListKey is the field holding the list payload. Empty means none.
	ListKey string
	// ItemKey is the field holding a single entity payload. Empty means none.
	ItemKey string
}

// registry is the static endpoint table. Never mutated after init.
var registry = []ResourceMapping{
	{Name: ResourceProducts, Path: "/products", ListKey: "products", ItemKey: "product"},
	{Name: ResourceOrders, Path: "/orders", ListKey: "orders", ItemKey: "order"},
	{Name: ResourceCustomers, Path: "/customers", ListKey: "data", ItemKey: "customer"},
	{Name: ResourceCoupons, Path: "/coupons", ListKey: "coupons", ItemKey: "coupon"},
	{Name: ResourceEmployees, Path: "/employees", ListKey: "employees", ItemKey: "employee"},
	{Name: ResourceStores, Path: "/stores", ListKey: "stores", ItemKey: "store"},
	{Name: ResourceCallClients, Path: "/call-clients", ListKey: "clients", ItemKey: "client"},
	{Name: ResourceCalls, Path: "/calls", ListKey: "calls", ItemKey: "call"},
	{Name: ResourceUsers, Path: "/users", ListKey: "users", ItemKey: "user"},
}

var (
	registryIndex = buildIndex(registry)

	unmapped = []ResourceName{ResourceCommissions, ResourceBonuses, ResourceTargets}
)

func buildIndex(entries []ResourceMapping) map[ResourceName]ResourceMapping {
	idx := make(map[ResourceName]ResourceMapping, len(entries))
	for _, m := range entries {
		idx[m.Name] = m
	}
	return idx
}

// Resolve returns the mapping for a resource name.
// The second result is false when the name has no endpoint.
func Resolve(name ResourceName) (ResourceMapping, bool) {
	m, ok := registryIndex[name]
	return m, ok
}

// ResourceMappings returns a copy of the registry in declaration order.
func ResourceMappings() []ResourceMapping {
	out := make([]ResourceMapping, len(registry))
	copy(out, registry)
	return out
}

// ResourceNames returns every resource the console knows about,
// mapped first, in stable order.
func ResourceNames() []ResourceName {
	names := make([]ResourceName, 0, len(registry)+len(unmapped))
	for _, m := range registry {
		names = append(names, m.Name)
	}
	return append(names, unmapped...)
}

// IsKnownResource reports whether name is part of the console's vocabulary,
// mapped or not.
func IsKnownResource(name ResourceName) bool {
	for _, n := range ResourceNames() {
		if n == name {
			return true
		}
	}
	return false
}

// ItemPath returns the endpoint for a single entity.
func (m ResourceMapping) ItemPath(id string) string {
	return m.Path + "/" + url.PathEscape(id)
}
