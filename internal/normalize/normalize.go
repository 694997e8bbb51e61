// Package normalize converts heterogeneous raw records (scraped pages,
// vendor feed rows) into the one canonical shape the rest of the pipeline
// consumes. Field name variance across vendors is absorbed here, once.
package normalize

import (
	"strconv"
	"strings"

	"GiftScout/internal/domain"
	"GiftScout/internal/faults"
)

// Field aliases observed across vendors, checked in order.
var (
	commerceIDAliases = []string{"commerce_id", "listing_id", "item_id", "product_id", "offer_id", "id"}
	crossIDAliases    = []string{"cross_id", "ean", "gtin", "upc", "barcode"}
	titleAliases      = []string{"title", "name", "product_name"}
	priceAliases      = []string{"price", "price_eur", "current_price", "sale_price", "amount"}
	imageAliases      = []string{"image_url", "image", "img", "picture"}
	urlAliases        = []string{"source_url", "url", "link", "product_url", "deeplink"}
	vendorAliases     = []string{"vendor_name", "vendor", "merchant", "shop", "seller"}
	stockAliases      = []string{"stock_state", "availability", "stock", "in_stock"}
	categoryAliases   = []string{"raw_category", "category", "product_type", "google_product_category"}
)

// Positive stock signals; everything else maps to out_of_stock or unknown.
var inStockValues = map[string]struct{}{
	"in_stock":      {},
	"in stock":      {},
	"instock":       {},
	"available":     {},
	"yes":           {},
	"true":          {},
	"1":             {},
	"disponible":    {},
	"en stock":      {},
	"preorder":      {},
	"limited":       {},
	"limited stock": {},
}

var outOfStockValues = map[string]struct{}{
	"out_of_stock": {},
	"out of stock": {},
	"outofstock":   {},
	"agotado":      {},
	"no":           {},
	"false":        {},
	"0":            {},
	"sold":         {},
	"sold_out":     {},
	"unavailable":  {},
}

// Candidate builds a CandidateRecord from a raw key-value record.
// A missing commerce id or an unparseable/negative price is a validation
// failure; everything else degrades to empty/unknown fields.
func Candidate(raw map[string]string) (domain.CandidateRecord, error) {
	record := domain.CandidateRecord{
		CommerceID:  pick(raw, commerceIDAliases),
		CrossID:     cleanCrossID(pick(raw, crossIDAliases)),
		Title:       strings.TrimSpace(pick(raw, titleAliases)),
		ImageURL:    strings.TrimSpace(pick(raw, imageAliases)),
		SourceURL:   strings.TrimSpace(pick(raw, urlAliases)),
		VendorName:  strings.TrimSpace(pick(raw, vendorAliases)),
		StockState:  StockState(pick(raw, stockAliases)),
		RawCategory: strings.ToLower(strings.TrimSpace(pick(raw, categoryAliases))),
	}

	if record.CommerceID == "" {
		return domain.CandidateRecord{}, faults.Validationf("normalize", "raw record has no commerce id")
	}

	priceText := pick(raw, priceAliases)
	price, err := Price(priceText)
	if err != nil {
		return domain.CandidateRecord{}, faults.Validationf("normalize", "candidate %s: bad price %q", record.CommerceID, priceText)
	}
	record.Price = price

	return record, nil
}

// FeedRow builds a VendorFeedRow from a raw feed record. Feed rows without
// a vendor id are unusable for reconciliation and fail validation; a bad
// price degrades to zero so stock checks still apply.
func FeedRow(raw map[string]string) (domain.VendorFeedRow, error) {
	row := domain.VendorFeedRow{
		VendorID:   pick(raw, commerceIDAliases),
		CrossID:    cleanCrossID(pick(raw, crossIDAliases)),
		Title:      strings.TrimSpace(pick(raw, titleAliases)),
		URL:        strings.TrimSpace(pick(raw, urlAliases)),
		VendorName: strings.TrimSpace(pick(raw, vendorAliases)),
		StockState: StockState(pick(raw, stockAliases)),
	}

	if row.VendorID == "" {
		return domain.VendorFeedRow{}, faults.Validationf("normalize", "feed row has no vendor id")
	}

	if price, err := Price(pick(raw, priceAliases)); err == nil {
		row.Price = price
	}

	return row, nil
}

// Price parses a price string into a non-negative decimal. Currency
// symbols and both decimal-separator conventions are tolerated:
// "49.99", "49,99 €", "1,234.56" and "1.234,56" all parse.
func Price(text string) (float64, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.NewReplacer("€", "", "$", "", "£", "", "EUR", "", "eur", "", " ", "", " ", "").Replace(cleaned)
	if cleaned == "" {
		return 0, faults.Validationf("normalize", "empty price")
	}

	lastDot := strings.LastIndex(cleaned, ".")
	lastComma := strings.LastIndex(cleaned, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		// The rightmost separator is the decimal mark.
		if lastComma > lastDot {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case lastComma >= 0:
		// A lone comma followed by exactly three digits is a thousands
		// separator ("1,234"); otherwise it is the decimal mark ("49,99").
		if len(cleaned)-lastComma-1 == 3 && strings.Count(cleaned, ",") == 1 && lastComma > 0 {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		}
	case lastDot >= 0:
		if strings.Count(cleaned, ".") > 1 {
			// "1.234.567" — all dots are grouping.
			cleaned = strings.ReplaceAll(cleaned, ".", "")
		}
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, faults.Validationf("normalize", "unparseable price %q", text)
	}
	if value < 0 {
		return 0, faults.Validationf("normalize", "negative price %q", text)
	}
	return value, nil
}

// StockState maps a raw availability signal to the enum. Unrecognized
// values stay unknown rather than guessing in-stock.
func StockState(raw string) domain.StockState {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if _, ok := inStockValues[normalized]; ok {
		return domain.StockInStock
	}
	if _, ok := outOfStockValues[normalized]; ok {
		return domain.StockOutOfStock
	}
	return domain.StockUnknown
}

func pick(raw map[string]string, aliases []string) string {
	for _, key := range aliases {
		if v, ok := raw[key]; ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func cleanCrossID(raw string) string {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	cleaned = strings.ReplaceAll(cleaned, "-", "")
	// Feeds export placeholder identifiers for books/own-brand items.
	switch strings.ToLower(cleaned) {
	case "0", "n/a", "none", "null":
		return ""
	}
	return cleaned
}
