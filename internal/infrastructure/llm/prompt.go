package llm

import (
	"fmt"
	"strings"

	"GiftScout/internal/domain"
)

const systemPrompt = "You curate gift recommendations for an online catalog. " +
	"You judge products strictly and write concise Spanish-market SEO copy. " +
	"You always answer with a single JSON array and nothing else."

// buildPrompt renders the numbered candidate list plus the controlled
// vocabulary. The response array must align positionally with the list.
func buildPrompt(batch []domain.CandidateRecord) string {
	var sb strings.Builder

	sb.WriteString("Evaluate the following products as potential gifts.\n\n")
	sb.WriteString("Products:\n")
	for i, c := range batch {
		fmt.Fprintf(&sb, "%d. %s | price %.2f EUR | category: %s | vendor: %s\n",
			i+1, c.Title, c.Price, c.RawCategory, c.VendorName)
	}

	sb.WriteString("\nAllowed categories (use exactly one):\n")
	sb.WriteString(strings.Join(domain.Categories, ", "))
	sb.WriteString("\n\nAllowed audience tags (pick 2-5):\n")
	sb.WriteString(strings.Join(domain.AudienceTags, ", "))

	sb.WriteString(`

Return a JSON array with exactly one object per product, in the same order:
[
  {
    "accepted": true,
    "quality_score": 7,
    "category": "kitchen",
    "audience_tags": ["adults", "birthday"],
    "seo_title": "50-60 characters",
    "meta_description": "140-160 characters",
    "description": "two paragraphs, 120-180 words",
    "pros": ["3-5 short items"],
    "cons": ["1-3 short items"],
    "faqs": [{"question": "...", "answer": "..."}],
    "verdict": "one sentence",
    "slug": "lowercase-hyphenated"
  }
]

Rules:
- quality_score is an integer from 0 to 10.
- category and audience_tags must come from the allowed lists verbatim.
- accepted=false for products that make weak gifts; still fill every field.
- Return ONLY the JSON array, no other text.`)

	return sb.String()
}
