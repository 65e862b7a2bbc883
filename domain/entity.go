package domain

import "fmt"

// EntityKind classifies the protected entities of the platform.
type EntityKind string

const (
	KindNamespace EntityKind = "namespace"
	KindDataset   EntityKind = "dataset"
	KindStream    EntityKind = "stream"
	// KindPrincipal covers principals treated as protected resources,
	// e.g. kerberos principals used for cross-system impersonation.
	KindPrincipal EntityKind = "principal"
)

// ParseEntityKind converts a string to an EntityKind.
func ParseEntityKind(s string) (EntityKind, error) {
	switch EntityKind(s) {
	case KindNamespace, KindDataset, KindStream, KindPrincipal:
		return EntityKind(s), nil
	}
	return "", fmt.Errorf("unknown entity kind %q", s)
}

// EntityRef identifies a protected entity. It is an immutable value and is
// compared structurally. Datasets and streams live inside a namespace;
// namespaces and principal resources are roots.
type EntityRef struct {
	Kind      EntityKind
	Namespace string // empty for namespace and principal kinds
	Name      string
}

// NamespaceRef returns the EntityRef for a namespace.
func NamespaceRef(name string) EntityRef {
	return EntityRef{Kind: KindNamespace, Name: name}
}

// DatasetRef returns the EntityRef for a dataset inside a namespace.
func DatasetRef(namespace, name string) EntityRef {
	return EntityRef{Kind: KindDataset, Namespace: namespace, Name: name}
}

// StreamRef returns the EntityRef for a stream inside a namespace.
func StreamRef(namespace, name string) EntityRef {
	return EntityRef{Kind: KindStream, Namespace: namespace, Name: name}
}

// PrincipalRef returns the EntityRef for a principal-as-resource.
func PrincipalRef(name string) EntityRef {
	return EntityRef{Kind: KindPrincipal, Name: name}
}

// Key returns the canonical string form used for storage and logging,
// e.g. "namespace:ns1", "dataset:ns1/orders", "principal:svc@EXAMPLE.COM".
func (e EntityRef) Key() string {
	if e.Namespace == "" {
		return string(e.Kind) + ":" + e.Name
	}
	return string(e.Kind) + ":" + e.Namespace + "/" + e.Name
}

// Parent returns the containing entity and true, or a zero EntityRef and
// false for root entities (namespaces and principal resources).
func (e EntityRef) Parent() (EntityRef, bool) {
	if e.Namespace == "" {
		return EntityRef{}, false
	}
	return NamespaceRef(e.Namespace), true
}

// ChildOf reports whether e lives directly inside the given namespace.
func (e EntityRef) ChildOf(ns EntityRef) bool {
	return ns.Kind == KindNamespace && e.Namespace == ns.Name
}

func (e EntityRef) String() string { return e.Key() }

// Wildcard matches any kind or name in an EntityPattern field.
const Wildcard = "*"

// EntityPattern selects a set of entities for wildcard grant/revoke.
// Kind and Name may be the Wildcard; Namespace is matched exactly (empty
// matches root entities only, Wildcard matches any namespace).
type EntityPattern struct {
	Kind      string
	Namespace string
	Name      string
}

// ExactPattern returns a pattern matching exactly one entity.
func ExactPattern(e EntityRef) EntityPattern {
	return EntityPattern{Kind: string(e.Kind), Namespace: e.Namespace, Name: e.Name}
}

// NamespacePattern matches every dataset, stream, and the namespace entity
// itself within the named namespace.
func NamespacePattern(namespace string) EntityPattern {
	return EntityPattern{Kind: Wildcard, Namespace: namespace, Name: Wildcard}
}

// Exact reports whether the pattern contains no wildcards.
func (p EntityPattern) Exact() bool {
	return p.Kind != Wildcard && p.Namespace != Wildcard && p.Name != Wildcard
}

// Entity returns the single entity an exact pattern identifies.
func (p EntityPattern) Entity() EntityRef {
	return EntityRef{Kind: EntityKind(p.Kind), Namespace: p.Namespace, Name: p.Name}
}

func (p EntityPattern) String() string {
	if p.Namespace == "" {
		return p.Kind + ":" + p.Name
	}
	return p.Kind + ":" + p.Namespace + "/" + p.Name
}

// Matches reports whether the pattern selects the given entity. A pattern
// over namespace ns also matches the namespace entity itself, so that
// transferring "everything under ns" includes the namespace grant.
func (p EntityPattern) Matches(e EntityRef) bool {
	if p.Kind != Wildcard && EntityKind(p.Kind) != e.Kind {
		return false
	}
	if p.Name != Wildcard && p.Name != e.Name {
		return false
	}
	if p.Namespace == Wildcard {
		return true
	}
	if p.Namespace == e.Namespace {
		return true
	}
	// Namespace-scoped wildcard also selects the namespace entity itself.
	return e.Kind == KindNamespace && p.Namespace == e.Name && p.Name == Wildcard
}
