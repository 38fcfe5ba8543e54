package papers

import "context"

// Author is one entry of a paper's ordered author list.
type Author struct {
	First  *string `json:"first"`
	Middle *string `json:"middle"`
	Last   string  `json:"last"`
	Suffix *string `json:"suffix"`
}

// Record is the bibliographic metadata a resolver returns for one paper.
type Record struct {
	Title         string   `json:"title"`
	Authors       []Author `json:"authors"`
	Year          *int     `json:"year"`
	Venue         *string  `json:"venue"`
	DOI           *string  `json:"doi"`
	PMID          *int64   `json:"pmid"`
	FieldsOfStudy []string `json:"fields_of_study"`
}

// Metadata is the output-facing paper record: bibliographic fields plus the
// study-type flags derived from the classification table.
type Metadata struct {
	Title         string   `json:"title"`
	Authors       []Author `json:"authors"`
	Year          *int     `json:"year"`
	Venue         *string  `json:"venue"`
	DOI           *string  `json:"doi"`
	PMID          *int64   `json:"pmid"`
	FieldsOfStudy []string `json:"fields_of_study"`
	Retraction    bool     `json:"retraction"`
	ClinicalStudy bool     `json:"clinical_study"`
	HumanStudy    bool     `json:"human_study"`
	AnimalStudy   bool     `json:"animal_study"`
}

// WithFlags combines a resolved record with its derived study flags.
func (r Record) WithFlags(flags StudyFlags) Metadata {
	authors := r.Authors
	if authors == nil {
		authors = []Author{}
	}
	fields := r.FieldsOfStudy
	if fields == nil {
		fields = []string{}
	}
	return Metadata{
		Title:         r.Title,
		Authors:       authors,
		Year:          r.Year,
		Venue:         r.Venue,
		DOI:           r.DOI,
		PMID:          r.PMID,
		FieldsOfStudy: fields,
		Retraction:    flags.Retraction,
		ClinicalStudy: flags.ClinicalStudy,
		HumanStudy:    flags.HumanStudy,
		AnimalStudy:   flags.AnimalStudy,
	}
}

// Resolver fetches bibliographic metadata for a batch of paper ids.
// Ids absent from the returned map are unresolved, not an error.
type Resolver interface {
	Resolve(ctx context.Context, ids []string) (map[string]Record, error)
}
