package concept

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
)

var (
	// ErrClusterOverlap reports a raw identifier claimed by two different clusters.
	ErrClusterOverlap = errors.New("overlapping clusters")
	// ErrMissingSelfMember reports a cluster whose canonical id is not one of its members.
	ErrMissingSelfMember = errors.New("cluster key missing from its members")
	// ErrNotFound reports a lookup for an id that is not a canonical cluster key.
	ErrNotFound = errors.New("concept not found")
)

// Registry maps raw vocabulary identifiers onto canonical supplement and drug
// concepts. It is built once from a clustering artifact and read-only afterwards.
type Registry struct {
	artifact Artifact
	supps    map[string]struct{}
	drugs    map[string]struct{}
	members  map[string]string // raw id -> canonical id
}

// LoadRegistry reads a clustering artifact from a JSON file and builds a Registry.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cluster file: %w", err)
	}

	var artifact Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("failed to parse cluster file: %w", err)
	}

	return NewRegistry(artifact)
}

// NewRegistry builds a Registry from an in-memory clustering artifact.
// It fails if any raw identifier belongs to two clusters, in either partition,
// or if a cluster does not contain its own canonical id.
func NewRegistry(artifact Artifact) (*Registry, error) {
	r := &Registry{
		artifact: artifact,
		supps:    make(map[string]struct{}, len(artifact.Supplements)),
		drugs:    make(map[string]struct{}, len(artifact.Drugs)),
		members:  make(map[string]string),
	}

	for key, cluster := range artifact.Supplements {
		r.supps[key] = struct{}{}
		if err := r.addMembers(key, cluster); err != nil {
			return nil, err
		}
	}
	for key, cluster := range artifact.Drugs {
		r.drugs[key] = struct{}{}
		if err := r.addMembers(key, cluster); err != nil {
			return nil, err
		}
	}

	return r, nil
}

func (r *Registry) addMembers(key string, cluster Cluster) error {
	selfFound := false
	for _, member := range cluster.Members {
		if existing, ok := r.members[member]; ok && existing != key {
			return fmt.Errorf("%w: %s claimed by %s and %s", ErrClusterOverlap, member, existing, key)
		}
		r.members[member] = key
		if member == key {
			selfFound = true
		}
	}
	if !selfFound {
		return fmt.Errorf("%w: %s", ErrMissingSelfMember, key)
	}
	return nil
}

// Normalize maps a raw identifier to its canonical cluster key.
// It returns "" if the identifier is unknown.
func (r *Registry) Normalize(rawID string) string {
	return r.members[rawID]
}

// IsValid reports whether a raw identifier belongs to any cluster.
func (r *Registry) IsValid(rawID string) bool {
	_, ok := r.members[rawID]
	return ok
}

// TypeOf returns the partition of the cluster a raw identifier belongs to.
func (r *Registry) TypeOf(rawID string) Type {
	canonical, ok := r.members[rawID]
	if !ok {
		return TypeUnknown
	}
	if _, ok := r.supps[canonical]; ok {
		return TypeSupplement
	}
	if _, ok := r.drugs[canonical]; ok {
		return TypeDrug
	}
	return TypeUnknown
}

// IsSupplementDrugPair reports whether the two identifiers are valid and one
// resolves to a supplement while the other resolves to a drug.
func (r *Registry) IsSupplementDrugPair(id1, id2 string) bool {
	t1, t2 := r.TypeOf(id1), r.TypeOf(id2)
	if t1 == TypeUnknown || t2 == TypeUnknown {
		return false
	}
	return (t1 == TypeSupplement && t2 == TypeDrug) || (t1 == TypeDrug && t2 == TypeSupplement)
}

// IsSupplementSupplementPair reports whether both identifiers resolve to supplements.
func (r *Registry) IsSupplementSupplementPair(id1, id2 string) bool {
	return r.TypeOf(id1) == TypeSupplement && r.TypeOf(id2) == TypeSupplement
}

// Lookup resolves full metadata for a canonical cluster key.
// It fails with ErrNotFound if the id is not a cluster key in either partition.
func (r *Registry) Lookup(canonicalID string) (Metadata, error) {
	if cluster, ok := r.artifact.Supplements[canonicalID]; ok {
		return Metadata{
			EntType:       TypeSupplement,
			PreferredName: cluster.PreferredName,
			Synonyms:      dedupeNames(cluster.Synonyms),
			Tradenames:    []string{},
			Definition:    cluster.Definition,
		}, nil
	}
	if cluster, ok := r.artifact.Drugs[canonicalID]; ok {
		tradenames := cluster.Tradenames
		if tradenames == nil {
			tradenames = []string{}
		}
		return Metadata{
			EntType:       TypeDrug,
			PreferredName: cluster.PreferredName,
			Synonyms:      dedupeNames(cluster.Synonyms),
			Tradenames:    tradenames,
			Definition:    cluster.Definition,
		}, nil
	}
	return Metadata{}, fmt.Errorf("%w: %s", ErrNotFound, canonicalID)
}

// CanonicalIDs returns every cluster key from both partitions, sorted.
func (r *Registry) CanonicalIDs() []string {
	ids := make([]string, 0, len(r.supps)+len(r.drugs))
	for id := range r.supps {
		ids = append(ids, id)
	}
	for id := range r.drugs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// dedupeNames removes case-insensitive duplicates while keeping order.
func dedupeNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, name)
	}
	return out
}
