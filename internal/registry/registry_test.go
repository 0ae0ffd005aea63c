package registry

import "testing"

func TestSeedBuiltinsRegistersThreeProducts(t *testing.T) {
	r := NewRegistry()
	SeedBuiltins(r)
	products := r.List()
	if len(products) != 3 {
		t.Fatalf("got %d products, want 3", len(products))
	}
	for _, name := range []string{"mysql", "webapp", "catalog-item"} {
		if _, ok := r.Get(name); !ok {
			t.Errorf("expected product %q to be registered", name)
		}
	}
}

func TestRegisterRejectsDuplicateName(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(ProductDefinition{Name: "mysql"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(ProductDefinition{Name: "mysql"}); err == nil {
		t.Fatal("expected error registering duplicate product name")
	}
	p, _ := r.Get("mysql")
	if p.ConnectionSecretSuffix != "-conn" {
		t.Fatalf("original registration should survive a rejected duplicate, got %+v", p)
	}
}

func TestUnknownParamsFlagsUndeclaredKeys(t *testing.T) {
	r := NewRegistry()
	SeedBuiltins(r)
	p, _ := r.Get("mysql")

	unknown := UnknownParams(p, map[string]any{
		"namespace": "default", "name": "db1", "cell": "payments", "tier": "critical",
		"size": "medium", "storageGB": 100, "region": "us-east-1",
	})
	if len(unknown) != 1 || unknown[0] != "region" {
		t.Fatalf("got %v, want [region]", unknown)
	}

	if unknown := UnknownParams(p, map[string]any{"size": "medium", "storageGB": 100}); len(unknown) != 0 {
		t.Fatalf("expected no unknown params, got %v", unknown)
	}
}

func TestValidateParamsMySQL(t *testing.T) {
	r := NewRegistry()
	SeedBuiltins(r)
	p, _ := r.Get("mysql")

	if errs := ValidateParams(p, map[string]any{"size": "medium", "storageGB": 100}); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if errs := ValidateParams(p, map[string]any{"size": "huge", "storageGB": 100}); len(errs) == 0 {
		t.Fatal("expected error for invalid choice")
	}
	if errs := ValidateParams(p, map[string]any{"size": "medium"}); len(errs) == 0 {
		t.Fatal("expected error for missing required storageGB")
	}
	if errs := ValidateParams(p, map[string]any{"size": "medium", "storageGB": 5}); len(errs) == 0 {
		t.Fatal("expected error for storageGB below minimum")
	}
}

func TestValidateParamsWebapp(t *testing.T) {
	r := NewRegistry()
	SeedBuiltins(r)
	p, _ := r.Get("webapp")

	errs := ValidateParams(p, map[string]any{
		"replicas": 3, "image": "registry.example.org/app:v1", "port": 8080,
	})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if errs := ValidateParams(p, map[string]any{"replicas": 100, "image": "x", "port": 80}); len(errs) == 0 {
		t.Fatal("expected error for replicas above maximum")
	}
}
