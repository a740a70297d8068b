// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides read-only lookups against the catalog
// collaborator's products table. The engine never writes products; it only
// normalizes inbound item references and rebuilds display data for
// reminder emails.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-cart-recovery/internal/domain"
)

// ProductsByID fetches the given catalog products and returns them keyed
// by id. Unknown ids are simply absent from the map; the caller decides
// whether that drops an item (recorder) or skips a record (scheduler).
func ProductsByID(ctx context.Context, db *gorm.DB, ids []uint) (map[uint]domain.Product, error) {
	out := make(map[uint]domain.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []domain.Product
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, p := range rows {
		out[p.ID] = p
	}
	return out, nil
}
