package indexer

// Section labels assigned by the chunker.
const (
	SectionCBC                    = "cbc"
	SectionLipidProfile           = "lipid_profile"
	SectionGlucoseDiabetes        = "glucose_diabetes"
	SectionKidneyFunction         = "kidney_function"
	SectionLiverFunction          = "liver_function"
	SectionElectrolytes           = "electrolytes"
	SectionClinicalInterpretation = "clinical_interpretation"
	SectionOther                  = "other"
)

// Chunk is a bounded, section-tagged piece of a page ready for embedding.
type Chunk struct {
	ChunkID          string // UUID v4, assigned once
	Content          string // context header + section text
	Section          string
	Source           string
	Page             int
	Year             *int
	ExtractionMethod string
}
