// Package filter gates which candidates enter the pending queue. Rules run
// in a fixed order and short-circuit on the first hard rejection; the final
// keyword score decides among survivors. Evaluation is pure — queueing is
// the caller's responsibility.
package filter

import (
	"fmt"
	"strings"

	"GiftScout/internal/config"
	"GiftScout/internal/domain"
)

// Verdict is the outcome of evaluating one candidate.
type Verdict struct {
	Accept bool
	Score  int
	Reason string
}

// Non-giftable category/title markers: perishables, bulk and industrial
// packs, hygiene staples, bulky furniture and appliances, sized apparel.
var blockedTerms = []string{
	"fresh", "frozen", "perishable", "grocery",
	"bulk", "pack of 24", "pack of 48", "industrial", "wholesale",
	"toothpaste", "deodorant", "detergent", "diapers", "shampoo refill",
	"mattress", "wardrobe", "sofa", "refrigerator", "washing machine", "dishwasher",
	"size s", "size m", "size l", "size xl", "size xxl", "trousers", "jeans",
}

// Override phrases that rescue an otherwise blocked candidate.
var allowOverrides = []string{
	"gift set", "gift box", "gift pack", "giftable", "caja regalo", "set de regalo",
}

// Positive gift-signal keywords and their weights.
var keywordScores = map[string]int{
	"gift":         20,
	"regalo":       20,
	"set":          10,
	"kit":          10,
	"personalized": 25,
	"personalised": 25,
	"engraved":     20,
	"handmade":     15,
	"original":     15,
	"premium":      10,
	"deluxe":       10,
	"vintage":      10,
	"fun":          8,
	"curious":      8,
	"gadget":       12,
	"accessory":    5,
	"mini":         5,
	"portable":     5,
	"led":          5,
	"bluetooth":    5,
	"smart":        8,
}

// Categories that historically convert well as gifts.
var favoredCategories = []string{
	"gift", "gadget", "toy", "game", "kitchen", "coffee", "tea", "book",
	"wellness", "candle", "decor", "experience",
}

// Evaluator applies the quality gate with configured bounds.
type Evaluator struct {
	minPrice  float64
	maxPrice  float64
	threshold int
}

// New builds an Evaluator from filter configuration.
func New(cfg config.FilterConfig) *Evaluator {
	return &Evaluator{
		minPrice:  cfg.MinPrice,
		maxPrice:  cfg.MaxPrice,
		threshold: cfg.ScoreThreshold,
	}
}

// Evaluate accepts or rejects a candidate and assigns a 0-100 relevance
// score. Hard rules run first; acceptance additionally requires the score
// to reach the configured threshold.
func (e *Evaluator) Evaluate(c domain.CandidateRecord) Verdict {
	// Very cheap items read as low-value gifts; very expensive ones fall
	// outside the target purchasing behavior.
	if c.Price < e.minPrice || c.Price > e.maxPrice {
		return Verdict{Reason: fmt.Sprintf("price %.2f outside band [%.0f, %.0f]", c.Price, e.minPrice, e.maxPrice)}
	}

	// Multi-vendor dedup and resurrection depend on the cross identifier.
	if c.CrossID == "" {
		return Verdict{Reason: "no cross-vendor identifier"}
	}

	if c.StockState != domain.StockInStock {
		return Verdict{Reason: fmt.Sprintf("stock state %s", c.StockState)}
	}

	text := strings.ToLower(c.Title + " " + c.RawCategory)
	if term, blocked := blockedMatch(text); blocked {
		return Verdict{Reason: fmt.Sprintf("blocked term %q", term)}
	}

	score := e.score(c, text)
	if score < e.threshold {
		return Verdict{Score: score, Reason: fmt.Sprintf("score %d below threshold %d", score, e.threshold)}
	}

	return Verdict{Accept: true, Score: score, Reason: "accepted"}
}

func blockedMatch(text string) (string, bool) {
	for _, phrase := range allowOverrides {
		if strings.Contains(text, phrase) {
			return "", false
		}
	}
	for _, term := range blockedTerms {
		if strings.Contains(text, term) {
			return term, true
		}
	}
	return "", false
}

func (e *Evaluator) score(c domain.CandidateRecord, text string) int {
	score := 25 // baseline for passing every hard rule

	for keyword, points := range keywordScores {
		if strings.Contains(text, keyword) {
			score += points
		}
	}

	for _, cat := range favoredCategories {
		if strings.Contains(c.RawCategory, cat) {
			score += 10
			break
		}
	}

	// Mid-band prices convert best as gifts.
	if c.Price >= 20 && c.Price <= 90 {
		score += 10
	}

	if c.ImageURL != "" {
		score += 5
	}

	if score > 100 {
		score = 100
	}
	return score
}
