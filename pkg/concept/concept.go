package concept

// Type classifies a canonical concept as supplement or drug.
type Type string

const (
	TypeSupplement Type = "supplement"
	TypeDrug       Type = "drug"
	TypeUnknown    Type = ""
)

// Cluster is one entry of the clustering artifact: a set of raw vocabulary
// identifiers collapsed onto a canonical concept, plus display metadata.
type Cluster struct {
	Members       []string `json:"members"`
	PreferredName string   `json:"preferred_name"`
	Synonyms      []string `json:"synonyms"`
	Definition    string   `json:"definition"`
	Tradenames    []string `json:"tradenames,omitempty"`
}

// Artifact is the on-disk shape of the concept clustering table.
type Artifact struct {
	Supplements map[string]Cluster `json:"supplements"`
	Drugs       map[string]Cluster `json:"drugs"`
}

// Metadata is the resolved, output-facing view of one concept.
type Metadata struct {
	EntType       Type     `json:"ent_type"`
	PreferredName string   `json:"preferred_name"`
	Synonyms      []string `json:"synonyms"`
	Tradenames    []string `json:"tradenames"`
	Definition    string   `json:"definition"`
}
