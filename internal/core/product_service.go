package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ProductInput is the editable subset of a product.
type ProductInput struct {
	Name                string
	Description         string
	UnitPriceHT         decimal.Decimal
	VATRate             decimal.Decimal
	UnlimitedStock      bool
	AllowOutOfStockSale bool
}

// ProductService manages the catalog, manual stock adjustments, and client
// reservations. Invoice-driven stock movements live in InvoiceService; this
// service only covers explicit operator actions.
type ProductService interface {
	CreateProduct(ctx context.Context, orgCode string, in ProductInput, initialStock decimal.Decimal) (*Product, error)
	UpdateProduct(ctx context.Context, orgCode string, productID int64, in ProductInput) (*Product, error)
	DeactivateProduct(ctx context.Context, orgCode string, productID int64) error
	GetProduct(ctx context.Context, productID int64) (*Product, error)
	ListProducts(ctx context.Context, orgCode string, includeInactive bool) ([]Product, error)

	// AdjustStock applies a signed manual correction and records the movement.
	AdjustStock(ctx context.Context, orgCode string, productID int64, delta decimal.Decimal, notes string) (*Product, error)
	ListStockMovements(ctx context.Context, orgCode string, productID int64) ([]StockMovement, error)

	// ReserveStock holds quantity for a client out of the product's available
	// stock. CancelReservation releases an active hold.
	ReserveStock(ctx context.Context, orgCode string, clientID, productID int64, quantity decimal.Decimal) (*Reservation, error)
	CancelReservation(ctx context.Context, orgCode string, reservationID int64) error
	ListReservations(ctx context.Context, orgCode string, clientID *int64) ([]Reservation, error)
}

type productService struct {
	pool *pgxpool.Pool
}

func NewProductService(pool *pgxpool.Pool) ProductService {
	return &productService{pool: pool}
}

func validateProductInput(in ProductInput) error {
	if in.Name == "" {
		return fmt.Errorf("product name is required")
	}
	if in.UnitPriceHT.IsNegative() {
		return fmt.Errorf("unit price cannot be negative, got %s", in.UnitPriceHT)
	}
	for _, r := range ValidVATRates {
		if in.VATRate.Equal(r) {
			return nil
		}
	}
	return fmt.Errorf("VAT rate %s is not a valid rate", in.VATRate)
}

func (s *productService) CreateProduct(ctx context.Context, orgCode string, in ProductInput, initialStock decimal.Decimal) (*Product, error) {
	if err := validateProductInput(in); err != nil {
		return nil, err
	}
	if initialStock.IsNegative() {
		return nil, fmt.Errorf("initial stock cannot be negative, got %s", initialStock)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	org, err := resolveOrg(ctx, tx, orgCode)
	if err != nil {
		return nil, err
	}

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO products (org_id, name, description, unit_price_ht, vat_rate,
			current_stock, unlimited_stock, allow_out_of_stock_sale)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, org.ID, in.Name, in.Description, in.UnitPriceHT, in.VATRate,
		initialStock, in.UnlimitedStock, in.AllowOutOfStockSale).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to insert product: %w", err)
	}

	if initialStock.IsPositive() {
		if _, err := tx.Exec(ctx, `
			INSERT INTO stock_movements (org_id, product_id, movement_type, quantity, notes)
			VALUES ($1, $2, 'ADJUSTMENT', $3, 'Initial stock')
		`, org.ID, id, initialStock); err != nil {
			return nil, fmt.Errorf("failed to record initial stock movement: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit product creation: %w", err)
	}
	return s.GetProduct(ctx, id)
}

func (s *productService) UpdateProduct(ctx context.Context, orgCode string, productID int64, in ProductInput) (*Product, error) {
	if err := validateProductInput(in); err != nil {
		return nil, err
	}
	org, err := resolveOrg(ctx, s.pool, orgCode)
	if err != nil {
		return nil, err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE products
		SET name = $1, description = $2, unit_price_ht = $3, vat_rate = $4,
		    unlimited_stock = $5, allow_out_of_stock_sale = $6
		WHERE org_id = $7 AND id = $8
	`, in.Name, in.Description, in.UnitPriceHT, in.VATRate,
		in.UnlimitedStock, in.AllowOutOfStockSale, org.ID, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to update product %d: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("product %d not found", productID)
	}
	return s.GetProduct(ctx, productID)
}

func (s *productService) DeactivateProduct(ctx context.Context, orgCode string, productID int64) error {
	org, err := resolveOrg(ctx, s.pool, orgCode)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		"UPDATE products SET is_active = false WHERE org_id = $1 AND id = $2",
		org.ID, productID,
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate product %d: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %d not found", productID)
	}
	return nil
}

func (s *productService) GetProduct(ctx context.Context, productID int64) (*Product, error) {
	var p Product
	err := s.pool.QueryRow(ctx, `
		SELECT id, org_id, name, description, unit_price_ht, vat_rate,
		       current_stock, reserved_stock, unlimited_stock, allow_out_of_stock_sale,
		       is_active, created_at
		FROM products WHERE id = $1
	`, productID).Scan(
		&p.ID, &p.OrgID, &p.Name, &p.Description, &p.UnitPriceHT, &p.VATRate,
		&p.CurrentStock, &p.ReservedStock, &p.UnlimitedStock, &p.AllowOutOfStockSale,
		&p.IsActive, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("product %d not found", productID)
		}
		return nil, fmt.Errorf("failed to fetch product %d: %w", productID, err)
	}
	return &p, nil
}

func (s *productService) ListProducts(ctx context.Context, orgCode string, includeInactive bool) ([]Product, error) {
	org, err := resolveOrg(ctx, s.pool, orgCode)
	if err != nil {
		return nil, err
	}
	query := `
		SELECT id, org_id, name, description, unit_price_ht, vat_rate,
		       current_stock, reserved_stock, unlimited_stock, allow_out_of_stock_sale,
		       is_active, created_at
		FROM products WHERE org_id = $1
	`
	if !includeInactive {
		query += " AND is_active = true"
	}
	query += " ORDER BY name"

	rows, err := s.pool.Query(ctx, query, org.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(
			&p.ID, &p.OrgID, &p.Name, &p.Description, &p.UnitPriceHT, &p.VATRate,
			&p.CurrentStock, &p.ReservedStock, &p.UnlimitedStock, &p.AllowOutOfStockSale,
			&p.IsActive, &p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, nil
}

func (s *productService) AdjustStock(ctx context.Context, orgCode string, productID int64, delta decimal.Decimal, notes string) (*Product, error) {
	if delta.IsZero() {
		return nil, fmt.Errorf("stock adjustment delta cannot be zero")
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	org, err := resolveOrg(ctx, tx, orgCode)
	if err != nil {
		return nil, err
	}

	var current, reserved decimal.Decimal
	err = tx.QueryRow(ctx,
		"SELECT current_stock, reserved_stock FROM products WHERE org_id = $1 AND id = $2 FOR UPDATE",
		org.ID, productID,
	).Scan(&current, &reserved)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("product %d not found", productID)
		}
		return nil, fmt.Errorf("failed to lock product %d: %w", productID, err)
	}
	newStock := current.Add(delta)
	if newStock.LessThan(reserved) {
		return nil, fmt.Errorf("adjustment would drop stock to %s, below the reserved %s",
			newStock.StringFixed(3), reserved.StringFixed(3))
	}

	if _, err := tx.Exec(ctx,
		"UPDATE products SET current_stock = $1 WHERE id = $2",
		newStock, productID,
	); err != nil {
		return nil, fmt.Errorf("failed to adjust stock for product %d: %w", productID, err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO stock_movements (org_id, product_id, movement_type, quantity, notes)
		VALUES ($1, $2, 'ADJUSTMENT', $3, $4)
	`, org.ID, productID, delta, notes); err != nil {
		return nil, fmt.Errorf("failed to record stock adjustment: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit stock adjustment: %w", err)
	}
	return s.GetProduct(ctx, productID)
}

func (s *productService) ListStockMovements(ctx context.Context, orgCode string, productID int64) ([]StockMovement, error) {
	org, err := resolveOrg(ctx, s.pool, orgCode)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, org_id, product_id, invoice_id, movement_type, quantity, notes, created_at
		FROM stock_movements
		WHERE org_id = $1 AND product_id = $2
		ORDER BY id DESC
	`, org.ID, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock movements: %w", err)
	}
	defer rows.Close()

	var movements []StockMovement
	for rows.Next() {
		var m StockMovement
		if err := rows.Scan(&m.ID, &m.OrgID, &m.ProductID, &m.InvoiceID, &m.MovementType, &m.Quantity, &m.Notes, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan stock movement: %w", err)
		}
		movements = append(movements, m)
	}
	return movements, nil
}

func (s *productService) ReserveStock(ctx context.Context, orgCode string, clientID, productID int64, quantity decimal.Decimal) (*Reservation, error) {
	if !quantity.IsPositive() {
		return nil, fmt.Errorf("reservation quantity must be positive, got %s", quantity)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	org, err := resolveOrg(ctx, tx, orgCode)
	if err != nil {
		return nil, err
	}

	var current, reserved decimal.Decimal
	var unlimited bool
	err = tx.QueryRow(ctx, `
		SELECT current_stock, reserved_stock, unlimited_stock
		FROM products WHERE org_id = $1 AND id = $2 AND is_active = true
		FOR UPDATE
	`, org.ID, productID).Scan(&current, &reserved, &unlimited)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("product %d not found", productID)
		}
		return nil, fmt.Errorf("failed to lock product %d: %w", productID, err)
	}
	if !unlimited && quantity.GreaterThan(current.Sub(reserved)) {
		return nil, fmt.Errorf("cannot reserve %s: only %s available",
			quantity.StringFixed(3), current.Sub(reserved).StringFixed(3))
	}

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO reservations (org_id, client_id, product_id, quantity, status)
		VALUES ($1, $2, $3, $4, 'active')
		RETURNING id
	`, org.ID, clientID, productID, quantity).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to insert reservation: %w", err)
	}

	if _, err := tx.Exec(ctx,
		"UPDATE products SET reserved_stock = reserved_stock + $1 WHERE id = $2",
		quantity, productID,
	); err != nil {
		return nil, fmt.Errorf("failed to reserve stock for product %d: %w", productID, err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO stock_movements (org_id, product_id, movement_type, quantity, notes)
		VALUES ($1, $2, 'RESERVATION', $3, $4)
	`, org.ID, productID, quantity,
		fmt.Sprintf("Reservation %d: %s units held for client %d", id, quantity.String(), clientID),
	); err != nil {
		return nil, fmt.Errorf("failed to record reservation movement: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit reservation: %w", err)
	}
	return s.getReservation(ctx, id)
}

func (s *productService) CancelReservation(ctx context.Context, orgCode string, reservationID int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	org, err := resolveOrg(ctx, tx, orgCode)
	if err != nil {
		return err
	}

	var productID int64
	var quantity decimal.Decimal
	var resStatus string
	err = tx.QueryRow(ctx, `
		SELECT product_id, quantity, status FROM reservations
		WHERE org_id = $1 AND id = $2 FOR UPDATE
	`, org.ID, reservationID).Scan(&productID, &quantity, &resStatus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("reservation %d not found", reservationID)
		}
		return fmt.Errorf("failed to lock reservation %d: %w", reservationID, err)
	}
	if resStatus != "active" {
		return fmt.Errorf("reservation %d is %s, not active", reservationID, resStatus)
	}

	if _, err := tx.Exec(ctx,
		"UPDATE reservations SET status = 'cancelled' WHERE id = $1",
		reservationID,
	); err != nil {
		return fmt.Errorf("failed to cancel reservation %d: %w", reservationID, err)
	}
	if _, err := tx.Exec(ctx,
		"UPDATE products SET reserved_stock = GREATEST(reserved_stock - $1, 0) WHERE id = $2",
		quantity, productID,
	); err != nil {
		return fmt.Errorf("failed to release reserved stock for product %d: %w", productID, err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO stock_movements (org_id, product_id, movement_type, quantity, notes)
		VALUES ($1, $2, 'RESERVATION_RELEASE', $3, $4)
	`, org.ID, productID, quantity.Neg(),
		fmt.Sprintf("Reservation %d cancelled", reservationID),
	); err != nil {
		return fmt.Errorf("failed to record reservation release: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *productService) getReservation(ctx context.Context, reservationID int64) (*Reservation, error) {
	var r Reservation
	err := s.pool.QueryRow(ctx, `
		SELECT id, org_id, client_id, product_id, quantity, status, created_at
		FROM reservations WHERE id = $1
	`, reservationID).Scan(&r.ID, &r.OrgID, &r.ClientID, &r.ProductID, &r.Quantity, &r.Status, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("reservation %d not found", reservationID)
		}
		return nil, fmt.Errorf("failed to fetch reservation %d: %w", reservationID, err)
	}
	return &r, nil
}

func (s *productService) ListReservations(ctx context.Context, orgCode string, clientID *int64) ([]Reservation, error) {
	org, err := resolveOrg(ctx, s.pool, orgCode)
	if err != nil {
		return nil, err
	}
	query := `
		SELECT id, org_id, client_id, product_id, quantity, status, created_at
		FROM reservations WHERE org_id = $1
	`
	args := []any{org.ID}
	if clientID != nil {
		args = append(args, *clientID)
		query += fmt.Sprintf(" AND client_id = $%d", len(args))
	}
	query += " ORDER BY id DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reservations: %w", err)
	}
	defer rows.Close()

	var reservations []Reservation
	for rows.Next() {
		var r Reservation
		if err := rows.Scan(&r.ID, &r.OrgID, &r.ClientID, &r.ProductID, &r.Quantity, &r.Status, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		reservations = append(reservations, r)
	}
	return reservations, nil
}
