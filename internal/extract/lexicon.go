package extract

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Lexicon holds the per-category pattern tables and the fuzzy vocabularies
// used by the [PatternExtractor]. The built-in [DefaultLexicon] is an
// illustrative default, not a frozen contract; deployments tune it via a
// YAML lexicon file ([LoadLexiconFile]).
type Lexicon struct {
	// Patterns maps each category to an ordered list of regular expressions.
	// Patterns are applied case-insensitively; they should not carry their
	// own (?i) flag.
	Patterns map[Category][]string `yaml:"patterns"`

	// FuzzyTerms maps a category to canonical vocabulary terms matched by
	// Jaro-Winkler similarity against individual transcript words. Used to
	// catch speech-to-text near-misses of drug and condition names.
	FuzzyTerms map[Category][]string `yaml:"fuzzy_terms"`
}

// DefaultLexicon returns the built-in clinical pattern tables.
//
// The symptom/medication/condition/procedure lists cover the common primary
// care vocabulary; vital-sign patterns capture the spoken forms ("blood
// pressure is 140 over 90") as well as the charted forms ("BP 140/90").
func DefaultLexicon() Lexicon {
	return Lexicon{
		Patterns: map[Category][]string{
			CategorySymptom: {
				`\b(?:chest pain|abdominal pain|back pain|joint pain)\b`,
				`\b(?:shortness of breath|dyspnea|wheezing|cough|congestion)\b`,
				`\b(?:nausea|vomiting|dizziness|fatigue|weakness)\b`,
				`\b(?:fever|chills|sweating|headache|migraine)\b`,
				`\b(?:pain|ache|soreness|tenderness|discomfort|burning|throbbing|cramping)\b`,
			},
			CategoryVitalSign: {
				`\b(?:blood pressure|bp)(?:\s+(?:is|was|of))?\s*:?\s*\d{2,3}\s*(?:/|over)\s*\d{2,3}\b`,
				`\b(?:heart rate|hr|pulse)(?:\s+(?:is|was|of))?\s*:?\s*\d{2,3}\s*(?:bpm)?\b`,
				`\b(?:temperature|temp)(?:\s+(?:is|was|of))?\s*:?\s*\d{2,3}(?:\.\d)?\s*(?:°?[fc]\b)?`,
				`\b(?:respiratory rate|rr)(?:\s+(?:is|was|of))?\s*:?\s*\d{1,2}\b`,
				`\b(?:oxygen saturation|o2 sat|spo2)(?:\s+(?:is|was|of))?\s*:?\s*\d{2,3}\s*%?`,
			},
			CategoryMedication: {
				`\b(?:aspirin|ibuprofen|acetaminophen|tylenol|advil|motrin|naproxen)\b`,
				`\b(?:atenolol|metoprolol|lisinopril|amlodipine|losartan)\b`,
				`\b(?:metformin|insulin|glipizide|glyburide)\b`,
				`\b(?:simvastatin|atorvastatin|pravastatin|rosuvastatin)\b`,
				`\b(?:omeprazole|lansoprazole|pantoprazole)\b`,
				`\b(?:nitroglycerin|albuterol|prednisone|warfarin)\b`,
			},
			CategoryCondition: {
				`\b(?:hypertension|high blood pressure|htn)\b`,
				`\b(?:diabetes|diabetic|dm)\b`,
				`\b(?:angina|coronary artery disease|cad)\b`,
				`\b(?:asthma|copd|bronchitis|pneumonia)\b`,
				`\b(?:arthritis|osteoarthritis|rheumatoid arthritis)\b`,
				`\b(?:gastritis|gerd|reflux)\b`,
			},
			CategoryProcedure: {
				`\b(?:ecg|ekg|electrocardiogram)\b`,
				`\b(?:x-ray|radiograph|ct scan|mri|ultrasound|echocardiogram)\b`,
				`\b(?:blood test|lab work|cbc|bmp|lipid panel|troponin)\b`,
				`\b(?:stress test|colonoscopy|endoscopy|biopsy)\b`,
			},
		},
		FuzzyTerms: map[Category][]string{
			CategoryMedication: {
				"aspirin", "ibuprofen", "acetaminophen", "atenolol", "metoprolol",
				"lisinopril", "amlodipine", "losartan", "metformin", "glipizide",
				"simvastatin", "atorvastatin", "omeprazole", "pantoprazole",
				"nitroglycerin", "albuterol", "prednisone", "warfarin",
			},
			CategoryCondition: {
				"hypertension", "diabetes", "angina", "asthma", "bronchitis",
				"pneumonia", "arthritis", "gastritis",
			},
		},
	}
}

// lexiconFile is the top-level structure of a lexicon YAML file.
//
// Example:
//
//	patterns:
//	  symptom:
//	    - '\b(?:photophobia|tinnitus)\b'
//	fuzzy_terms:
//	  medication:
//	    - apixaban
type lexiconFile struct {
	Patterns   map[string][]string `yaml:"patterns"`
	FuzzyTerms map[string][]string `yaml:"fuzzy_terms"`
}

// LoadLexiconFile reads a lexicon YAML file from disk and merges it over the
// built-in defaults: categories present in the file replace the default list
// for that category, absent categories keep their defaults.
func LoadLexiconFile(path string) (Lexicon, error) {
	f, err := os.Open(path)
	if err != nil {
		return Lexicon{}, fmt.Errorf("extract: open lexicon file %q: %w", path, err)
	}
	defer f.Close()

	lex, err := LoadLexiconFromReader(f)
	if err != nil {
		return Lexicon{}, fmt.Errorf("extract: parse lexicon file %q: %w", path, err)
	}
	return lex, nil
}

// LoadLexiconFromReader parses lexicon YAML from r and merges it over
// [DefaultLexicon]. Unknown category names are rejected so typos in the file
// surface immediately.
func LoadLexiconFromReader(r io.Reader) (Lexicon, error) {
	var lf lexiconFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&lf); err != nil {
		return Lexicon{}, fmt.Errorf("extract: decode lexicon yaml: %w", err)
	}

	lex := DefaultLexicon()
	for name, patterns := range lf.Patterns {
		c := Category(name)
		if !c.IsValid() {
			return Lexicon{}, fmt.Errorf("extract: lexicon: unknown category %q", name)
		}
		lex.Patterns[c] = patterns
	}
	for name, terms := range lf.FuzzyTerms {
		c := Category(name)
		if !c.IsValid() {
			return Lexicon{}, fmt.Errorf("extract: lexicon: unknown fuzzy category %q", name)
		}
		lex.FuzzyTerms[c] = terms
	}
	return lex, nil
}
