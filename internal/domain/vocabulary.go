package domain

import "fmt"

// Categories is the controlled vocabulary for the classification category.
// The boundary is told this exact list; anything outside it is a terminal
// validation failure, never coerced.
var Categories = []string{
	"tech",
	"home",
	"kitchen",
	"toys",
	"books",
	"beauty",
	"wellness",
	"sports",
	"outdoor",
	"fashion-accessories",
	"stationery",
	"experience",
}

// AudienceTags is the controlled vocabulary for age/occasion/recipient tags.
var AudienceTags = []string{
	// age bands
	"kids",
	"teens",
	"adults",
	"seniors",
	// occasions
	"birthday",
	"christmas",
	"valentines",
	"mothers-day",
	"fathers-day",
	"wedding",
	"anniversary",
	"housewarming",
	// recipients
	"for-her",
	"for-him",
	"for-couples",
	"for-friends",
	"for-coworkers",
}

var (
	categorySet = toSet(Categories)
	tagSet      = toSet(AudienceTags)
)

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

// ValidCategory reports whether the category belongs to the vocabulary.
func ValidCategory(category string) bool {
	_, ok := categorySet[category]
	return ok
}

// ValidTag reports whether a single audience tag belongs to the vocabulary.
func ValidTag(tag string) bool {
	_, ok := tagSet[tag]
	return ok
}

// ValidateTaxonomy checks a classification result against the controlled
// vocabulary. The first offending value is reported.
func ValidateTaxonomy(r ClassificationResult) error {
	if !ValidCategory(r.Category) {
		return fmt.Errorf("category %q is not in the controlled vocabulary", r.Category)
	}
	for _, tag := range r.AudienceTags {
		if !ValidTag(tag) {
			return fmt.Errorf("audience tag %q is not in the controlled vocabulary", tag)
		}
	}
	return nil
}
