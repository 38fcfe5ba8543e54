package kb

import (
	"github.com/OFFIS-RIT/suppkb/pkg/concept"
	"github.com/OFFIS-RIT/suppkb/pkg/evidence"
	"github.com/OFFIS-RIT/suppkb/pkg/logger"
)

// RemovalReason tags why a reconciliation pass dropped a concept.
type RemovalReason string

const (
	// RemovedMissingMetadata marks a concept referenced by evidence whose id is
	// no longer a canonical cluster key in the registry.
	RemovedMissingMetadata RemovalReason = "missing_metadata"
)

// ReconcileReport makes the cascade auditable: which concepts were dropped and
// which interactions went with them.
type ReconcileReport struct {
	RemovedConcepts     map[string]RemovalReason
	RemovedInteractions []string
}

// Reconcile resolves every concept in the index against the registry and
// repairs any drift. The concept universe is the union of concepts referenced
// by evidence and all registry concepts, so concepts without current evidence
// still get an entry. A concept whose lookup fails is removed together with
// every interaction touching it and those interactions' evidence; an
// interaction survives only if both endpoints resolve. The repair runs in two
// passes (mark unresolvable keys, then sweep dependents) so no map is mutated
// while being iterated.
func (kb *KnowledgeBase) Reconcile(registry *concept.Registry) *ReconcileReport {
	report := &ReconcileReport{
		RemovedConcepts: make(map[string]RemovalReason),
	}

	universe := make(map[string]struct{}, len(kb.Interactions))
	for conceptID := range kb.Interactions {
		universe[conceptID] = struct{}{}
	}
	for _, conceptID := range registry.CanonicalIDs() {
		universe[conceptID] = struct{}{}
	}

	// Mark pass: resolve metadata, collect unresolvable concepts.
	for _, conceptID := range sortedKeys(universe) {
		metadata, err := registry.Lookup(conceptID)
		if err != nil {
			logger.Warn("[KB] Concept missing from registry, cascading", "concept", conceptID)
			report.RemovedConcepts[conceptID] = RemovedMissingMetadata
			continue
		}
		kb.Concepts[conceptID] = metadata
	}

	// Sweep pass: drop every interaction touching a removed concept.
	doomed := make(map[string]struct{})
	for conceptID := range report.RemovedConcepts {
		for interactionID := range kb.Interactions[conceptID] {
			doomed[interactionID] = struct{}{}
		}
		delete(kb.Interactions, conceptID)
	}
	for _, interactionID := range sortedKeys(doomed) {
		delete(kb.Sentences, interactionID)
		report.RemovedInteractions = append(report.RemovedInteractions, interactionID)
	}
	for conceptID := range kb.Interactions {
		for interactionID := range doomed {
			delete(kb.Interactions[conceptID], interactionID)
		}
	}

	// Registry concepts without evidence keep an empty interaction set so they
	// stay browsable.
	for conceptID := range kb.Concepts {
		if kb.Interactions[conceptID] == nil {
			kb.Interactions[conceptID] = make(map[string]struct{})
		}
	}

	if len(report.RemovedConcepts) > 0 {
		logger.Info(
			"[KB] Reconciliation removed unresolvable concepts",
			"concepts", len(report.RemovedConcepts),
			"interactions", len(report.RemovedInteractions),
		)
	}

	return report
}

// dropInteraction removes an interaction from its evidence table and from both
// endpoints' interaction sets. Endpoint concepts are retained even if their
// interaction set becomes empty.
func (kb *KnowledgeBase) dropInteraction(interactionID string) {
	delete(kb.Sentences, interactionID)
	for _, conceptID := range evidence.SplitInteractionKey(interactionID) {
		if set, ok := kb.Interactions[conceptID]; ok {
			delete(set, interactionID)
		}
	}
}
