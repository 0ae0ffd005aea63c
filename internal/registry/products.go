// Package registry is the extensible product catalog: each registered
// product names its Crossplane CRD coordinates and developer-facing
// parameters. The scheduler, health checks, experiments, and analytics stay
// product-agnostic; adding a product is exactly registering a
// ProductDefinition. Grounded on the retrieved products/registry.py.
package registry

import (
	"fmt"
	"sort"
	"sync"
)

// ParamType is the primitive type of a product parameter.
type ParamType string

const (
	ParamString ParamType = "string"
	ParamInt    ParamType = "int"
	ParamBool   ParamType = "bool"
	ParamChoice ParamType = "choice"
)

// ParameterSpec validates one developer-facing product parameter.
type ParameterSpec struct {
	Name     string
	Required bool
	Type     ParamType
	Choices  []string
	Min      int
	Max      int
	Default  any
}

// ProductDefinition is the extension point for the catalog: its CRD
// coordinates and the parameters a developer may supply.
type ProductDefinition struct {
	Name                    string
	DisplayName             string
	Description             string
	APIVersion              string
	Kind                    string
	CompositionGroup        string
	CompositionClass        string
	Parameters              []ParameterSpec
	ConnectionSecretSuffix  string
}

// Registry is the product catalog, guarded by a mutex and injected
// explicitly into the HTTP layer.
type Registry struct {
	mu       sync.RWMutex
	products map[string]ProductDefinition
}

// NewRegistry creates an empty product registry.
func NewRegistry() *Registry {
	return &Registry{products: make(map[string]ProductDefinition)}
}

// Register adds a product definition. Registration is write-once: a
// duplicate name is a configuration error, not a silent overwrite.
func (r *Registry) Register(p ProductDefinition) error {
	if p.ConnectionSecretSuffix == "" {
		p.ConnectionSecretSuffix = "-conn"
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.products[p.Name]; exists {
		return fmt.Errorf("registry: product %q already registered", p.Name)
	}
	r.products[p.Name] = p
	return nil
}

// Get returns a product definition by name.
func (r *Registry) Get(name string) (ProductDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.products[name]
	return p, ok
}

// List returns all registered products sorted by name.
func (r *Registry) List() []ProductDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ProductDefinition, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ValidateParams checks a raw request body against a product's parameter
// specs and returns human-readable error strings (empty slice = valid).
func ValidateParams(p ProductDefinition, body map[string]any) []string {
	var errs []string
	for _, spec := range p.Parameters {
		value, present := body[spec.Name]

		if !present {
			if spec.Required && spec.Default == nil {
				errs = append(errs, fmt.Sprintf("%s is required", spec.Name))
			}
			continue
		}

		switch spec.Type {
		case ParamInt:
			n, ok := asInt(value)
			if !ok {
				errs = append(errs, fmt.Sprintf("%s must be an integer", spec.Name))
				continue
			}
			if spec.Min != 0 && n < spec.Min {
				errs = append(errs, fmt.Sprintf("%s must be >= %d", spec.Name, spec.Min))
			}
			if spec.Max != 0 && n > spec.Max {
				errs = append(errs, fmt.Sprintf("%s must be <= %d", spec.Name, spec.Max))
			}
		case ParamBool:
			if _, ok := value.(bool); !ok {
				errs = append(errs, fmt.Sprintf("%s must be a boolean", spec.Name))
			}
		case ParamChoice:
			s, ok := value.(string)
			if !ok || !contains(spec.Choices, s) {
				errs = append(errs, fmt.Sprintf("%s must be one of %v", spec.Name, spec.Choices))
			}
		default: // ParamString
			if _, ok := value.(string); !ok {
				errs = append(errs, fmt.Sprintf("%s must be a string", spec.Name))
			}
		}
	}
	return errs
}

// ReservedRequestFields are the common request fields validated by the
// handler layer, not per product — they never count as unknown parameters.
var ReservedRequestFields = []string{"namespace", "name", "cell", "tier", "environment", "ha"}

// UnknownParams returns request-body keys that are neither a declared
// product parameter nor a reserved common field.
func UnknownParams(p ProductDefinition, body map[string]any) []string {
	known := make(map[string]bool, len(p.Parameters)+len(ReservedRequestFields))
	for _, spec := range p.Parameters {
		known[spec.Name] = true
	}
	for _, f := range ReservedRequestFields {
		known[f] = true
	}
	var unknown []string
	for key := range body {
		if !known[key] {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	return unknown
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), n == float64(int(n))
	default:
		return 0, false
	}
}

func contains(items []string, want string) bool {
	for _, it := range items {
		if it == want {
			return true
		}
	}
	return false
}

// SeedBuiltins registers the built-in product catalog: mysql (the legacy,
// specifically-shaped product with the /api/mysql aliases), webapp, and
// catalog-item — the three product families spec.md's purpose statement
// names, so the "extensible catalog" half of the platform is actually
// exercised end to end.
func SeedBuiltins(r *Registry) error {
	if err := r.Register(ProductDefinition{
		Name:             "mysql",
		DisplayName:      "Managed MySQL",
		Description:      "A managed, cell-scheduled MySQL instance.",
		APIVersion:       "db.platform.example.org/v1alpha1",
		Kind:             "MySQLInstanceClaim",
		CompositionGroup: "db.platform.example.org",
		CompositionClass: "mysql",
		Parameters: []ParameterSpec{
			{Name: "size", Type: ParamChoice, Required: true, Choices: []string{"small", "medium", "large"}},
			{Name: "storageGB", Type: ParamInt, Required: true, Min: 10, Max: 65536},
		},
	}); err != nil {
		return err
	}
	if err := r.Register(ProductDefinition{
		Name:             "webapp",
		DisplayName:      "Web Application",
		Description:      "A stateless web application deployment.",
		APIVersion:       "apps.platform.example.org/v1alpha1",
		Kind:             "WebAppClaim",
		CompositionGroup: "apps.platform.example.org",
		CompositionClass: "webapp",
		Parameters: []ParameterSpec{
			{Name: "replicas", Type: ParamInt, Required: true, Min: 1, Max: 50},
			{Name: "image", Type: ParamString, Required: true},
			{Name: "port", Type: ParamInt, Required: true, Min: 1, Max: 65535},
		},
	}); err != nil {
		return err
	}
	return r.Register(ProductDefinition{
		Name:             "catalog-item",
		DisplayName:      "Extensible Catalog Item",
		Description:      "A generic entry in the extensible service catalog.",
		APIVersion:       "catalog.platform.example.org/v1alpha1",
		Kind:             "CatalogItemClaim",
		CompositionGroup: "catalog.platform.example.org",
		CompositionClass: "generic",
		Parameters: []ParameterSpec{
			{Name: "kind", Type: ParamChoice, Required: true, Choices: []string{"queue", "cache", "search-index", "object-store"}},
			{Name: "sourceRef", Type: ParamString, Required: true},
		},
	})
}
