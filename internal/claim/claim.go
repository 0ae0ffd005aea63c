// Package claim builds Crossplane-style Claim documents from a placement
// decision. Claims are represented as k8s.io/apimachinery
// unstructured.Unstructured — the idiomatic Go shape for "a Kubernetes-style
// declarative document this process does not own the schema of" — rather
// than a bespoke struct-of-maps, mirroring cluster-inventory-api and
// rkhokhla-kakeya/operator's Crossplane-claim modeling.
package claim

import (
	"github.com/cellforge/idp-controlplane/internal/registry"
	"github.com/cellforge/idp-controlplane/internal/types"
	"github.com/cellforge/idp-controlplane/pkg/canonicaljson"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

const placementReasonAnnotation = "platform.example.org/placement-reason"

// AnnotationKey is the annotation the placement audit record is stored
// under, exported so httpapi/sticky can read it back without duplicating
// the literal.
const AnnotationKey = placementReasonAnnotation

// commonLabels stamps the cell/environment/tier/product labels shared by
// every product's Claim.
func commonLabels(cell, environment, tier, product string) map[string]any {
	return map[string]any{
		"platform.example.org/cell":        cell,
		"platform.example.org/environment": environment,
		"platform.example.org/tier":        tier,
		"platform.example.org/product":     product,
	}
}

// Build constructs a generic, product-agnostic Claim for any registered
// product: common labels/annotations, a compositionSelector keyed on the
// decided provider, and a writeConnectionSecretToRef derived from the
// product's connection-secret suffix. Grounded on
// products/registry.py:build_product_claim.
func Build(p registry.ProductDefinition, namespace, name, cell, environment, tier string, devParams map[string]any, placement types.Placement) (*unstructured.Unstructured, error) {
	reasonJSON, err := canonicaljson.MarshalString(placement.Reason)
	if err != nil {
		return nil, err
	}

	params := map[string]any{
		"cell":           cell,
		"environment":    environment,
		"tier":           tier,
		"provider":       placement.Provider,
		"region":         placement.Region,
		"runtimeCluster": placement.RuntimeCluster,
		"network":        placement.Network,
	}
	for _, spec := range p.Parameters {
		v, ok := devParams[spec.Name]
		if !ok {
			if spec.Default == nil {
				continue
			}
			v = spec.Default
		}
		// unstructured deep-copies only JSON types: a Go int becomes int64.
		if n, isInt := v.(int); isInt {
			v = int64(n)
		}
		params[spec.Name] = v
	}

	u := &unstructured.Unstructured{}
	u.SetAPIVersion(p.APIVersion)
	u.SetKind(p.Kind)
	u.SetName(name)
	u.SetNamespace(namespace)
	u.SetLabels(toStringMap(commonLabels(cell, environment, tier, p.Name)))
	u.SetAnnotations(map[string]string{placementReasonAnnotation: reasonJSON})

	_ = unstructured.SetNestedMap(u.Object, params, "spec", "parameters")
	_ = unstructured.SetNestedStringMap(u.Object, map[string]string{
		p.CompositionGroup + "/provider": placement.Provider,
		p.CompositionGroup + "/class":    p.CompositionClass,
	}, "spec", "compositionSelector", "matchLabels")
	_ = unstructured.SetNestedField(u.Object, name+p.ConnectionSecretSuffix, "spec", "writeConnectionSecretToRef", "name")

	return u, nil
}

// ConnectionSecretName returns the connection secret name a claim built for
// this product/name would carry, without needing the full Claim.
func ConnectionSecretName(p registry.ProductDefinition, name string) string {
	suffix := p.ConnectionSecretSuffix
	if suffix == "" {
		suffix = "-conn"
	}
	return name + suffix
}

// PlacementReasonOf returns the placement-reason annotation of a
// previously-built Claim as its raw JSON string (callers decode it), for
// sticky lookups that need to echo the original decision back to the caller.
func PlacementReasonOf(u *unstructured.Unstructured) (string, bool) {
	annotations := u.GetAnnotations()
	if annotations == nil {
		return "", false
	}
	v, ok := annotations[placementReasonAnnotation]
	return v, ok
}

func toStringMap(m map[string]any) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
