// Package reconcile keeps the published catalog consistent with a fresh
// vendor feed. It only emits instructions; applying them against the
// content boundary is the caller's responsibility.
package reconcile

import (
	"fmt"
	"math"

	"GiftScout/internal/domain"
)

// Index is the dual in-memory view over one feed download: by vendor id
// and by cross id. It is rebuilt on every run and never persisted.
type Index struct {
	byVendorID map[string]domain.VendorFeedRow
	byCrossID  map[string][]domain.VendorFeedRow
	rows       int
}

// BuildIndex constructs the dual index in one pass. Cross-id buckets keep
// feed order; the resurrection tie-break relies on it.
func BuildIndex(rows []domain.VendorFeedRow) *Index {
	index := &Index{
		byVendorID: make(map[string]domain.VendorFeedRow, len(rows)),
		byCrossID:  make(map[string][]domain.VendorFeedRow),
		rows:       len(rows),
	}

	for _, row := range rows {
		if _, exists := index.byVendorID[row.VendorID]; !exists {
			index.byVendorID[row.VendorID] = row
		}
		if row.CrossID != "" {
			index.byCrossID[row.CrossID] = append(index.byCrossID[row.CrossID], row)
		}
	}

	return index
}

// Len returns the number of indexed rows.
func (i *Index) Len() int { return i.rows }

// ByVendorID looks up the feed row of a vendor offer.
func (i *Index) ByVendorID(vendorID string) (domain.VendorFeedRow, bool) {
	row, ok := i.byVendorID[vendorID]
	return row, ok
}

// ByCrossID returns all offers of a physical product, in feed order.
func (i *Index) ByCrossID(crossID string) []domain.VendorFeedRow {
	if crossID == "" {
		return nil
	}
	return i.byCrossID[crossID]
}

// Reconciler compares published items against a feed index.
type Reconciler struct {
	priceEpsilon float64
}

// New builds a Reconciler; priceEpsilon bounds tolerated price drift.
func New(priceEpsilon float64) *Reconciler {
	if priceEpsilon <= 0 {
		priceEpsilon = 0.01
	}
	return &Reconciler{priceEpsilon: priceEpsilon}
}

// Reconcile walks the published snapshot and emits healing instructions.
// Healthy items produce nothing. Published identifiers are never dropped:
// a vanished offer is soft-delisted or moved to an equivalent offer of the
// same physical product, never hard-deleted.
func (r *Reconciler) Reconcile(snapshot []domain.PublishedInventoryItem, index *Index) []domain.UpdateInstruction {
	var instructions []domain.UpdateInstruction

	for _, item := range snapshot {
		if row, ok := index.ByVendorID(item.VendorID); ok {
			if instruction, emit := r.checkLiveOffer(item, row); emit {
				instructions = append(instructions, instruction)
			}
			continue
		}

		// Offer gone from the feed: try an equivalent offer from any
		// vendor carrying the same physical product.
		if candidates := index.ByCrossID(item.CrossID); len(candidates) > 0 {
			replacement := candidates[0] // first in feed order
			instructions = append(instructions, domain.UpdateInstruction{
				Kind:     domain.InstructionResurrect,
				PublicID: item.PublicID,
				VendorID: replacement.VendorID,
				Price:    replacement.Price,
				URL:      replacement.URL,
				Reason:   fmt.Sprintf("vendor %s discontinued, replaced by %s", item.VendorID, replacement.VendorID),
			})
			continue
		}

		// Zombie: no offer anywhere. Soft-delist keeps the URL alive.
		instructions = append(instructions, domain.UpdateInstruction{
			Kind:     domain.InstructionSoftDelist,
			PublicID: item.PublicID,
			Reason:   fmt.Sprintf("no feed offer for vendor %s or cross id %s", item.VendorID, item.CrossID),
		})
	}

	return instructions
}

func (r *Reconciler) checkLiveOffer(item domain.PublishedInventoryItem, row domain.VendorFeedRow) (domain.UpdateInstruction, bool) {
	if row.StockState == domain.StockOutOfStock {
		return domain.UpdateInstruction{
			Kind:     domain.InstructionSoftDelist,
			PublicID: item.PublicID,
			Reason:   fmt.Sprintf("vendor %s reports out of stock", item.VendorID),
		}, true
	}

	if row.Price > 0 && math.Abs(row.Price-item.Price) > r.priceEpsilon {
		return domain.UpdateInstruction{
			Kind:     domain.InstructionPriceUpdate,
			PublicID: item.PublicID,
			Price:    row.Price,
			Reason:   fmt.Sprintf("price drift %.2f -> %.2f", item.Price, row.Price),
		}, true
	}

	return domain.UpdateInstruction{}, false
}
