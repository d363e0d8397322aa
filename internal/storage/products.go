package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kalambet/tresses/internal/recommend"
)

// Product implements recommend.Catalog.
func (s *Store) Product(ctx context.Context, id string) (recommend.Product, bool, error) {
	var p recommend.Product
	err := s.db.QueryRowContext(ctx, `SELECT id, name, category, price FROM products WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.Category, &p.Price)
	if err == sql.ErrNoRows {
		return recommend.Product{}, false, nil
	}
	if err != nil {
		return recommend.Product{}, false, err
	}
	return p, true, nil
}

// UpsertProducts writes products in one transaction.
func (s *Store) UpsertProducts(ctx context.Context, products []recommend.Product) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning product transaction: %w", err)
	}
	defer tx.Rollback()

	for _, p := range products {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO products (id, name, category, price) VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name, category = excluded.category, price = excluded.price`,
			p.ID, p.Name, p.Category, p.Price,
		); err != nil {
			return fmt.Errorf("upserting product %s: %w", p.ID, err)
		}
	}
	return tx.Commit()
}
