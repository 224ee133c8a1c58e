package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sweetrise/bakery-pos/internal/domain"
)

// GetProduct реализует domain.ProductCatalog поверх таблицы products.
func (s *Store) GetProduct(ctx context.Context, id string) (domain.ProductInfo, error) {
	var product domain.ProductInfo
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, price, image_url
		FROM products
		WHERE id = $1
	`, id).Scan(&product.ID, &product.Name, &product.Price, &product.ImageURL)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ProductInfo{}, domain.ErrProductNotFound
		}
		return domain.ProductInfo{}, fmt.Errorf("select product: %w", err)
	}
	return product, nil
}

// GetStaff реализует domain.StaffDirectory поверх таблицы app_users.
func (s *Store) GetStaff(ctx context.Context, id string) (domain.StaffInfo, error) {
	var member domain.StaffInfo
	err := s.db.QueryRowContext(ctx, `
		SELECT id, full_name
		FROM app_users
		WHERE id = $1
	`, id).Scan(&member.ID, &member.FullName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.StaffInfo{}, domain.ErrStaffNotFound
		}
		return domain.StaffInfo{}, fmt.Errorf("select staff member: %w", err)
	}
	return member, nil
}

// SeedProduct добавляет товар каталога вместе со складской записью.
// Используется миграционными утилитами и интеграционными тестами.
func (s *Store) SeedProduct(ctx context.Context, product domain.ProductInfo, stock, lowStockThreshold int32) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO products (id, name, price, image_url)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, price = EXCLUDED.price
	`, product.ID, product.Name, product.Price, product.ImageURL); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("seed product: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO inventory (id, product_id, stock_quantity, low_stock_threshold, last_updated)
		VALUES (gen_random_uuid(), $1, $2, $3, NOW())
		ON CONFLICT (product_id) DO UPDATE
		SET stock_quantity = EXCLUDED.stock_quantity,
		    low_stock_threshold = EXCLUDED.low_stock_threshold,
		    last_updated = NOW()
	`, product.ID, stock, lowStockThreshold); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("seed inventory: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	return nil
}

// SeedStaff добавляет сотрудника в справочник.
func (s *Store) SeedStaff(ctx context.Context, member domain.StaffInfo) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (id, full_name)
		VALUES ($1,$2)
		ON CONFLICT (id) DO UPDATE SET full_name = EXCLUDED.full_name
	`, member.ID, member.FullName)
	if err != nil {
		return fmt.Errorf("seed staff member: %w", err)
	}
	return nil
}

var (
	_ domain.ProductCatalog = (*Store)(nil)
	_ domain.StaffDirectory = (*Store)(nil)
)
