package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SupplierInput is the editable subset of a supplier.
type SupplierInput struct {
	Name     string
	TaxID    string
	Email    string
	Phone    string
	Address  string
	Category string
	Notes    string
}

// SupplierService manages purchasing counterparties. Suppliers are pure master
// data here; the AI supplier search reads through ListSuppliers.
type SupplierService interface {
	CreateSupplier(ctx context.Context, orgCode string, in SupplierInput) (*Supplier, error)
	UpdateSupplier(ctx context.Context, orgCode string, supplierID int64, in SupplierInput) (*Supplier, error)
	DeactivateSupplier(ctx context.Context, orgCode string, supplierID int64) error
	GetSupplier(ctx context.Context, supplierID int64) (*Supplier, error)
	ListSuppliers(ctx context.Context, orgCode string, includeInactive bool) ([]Supplier, error)
}

type supplierService struct {
	pool *pgxpool.Pool
}

func NewSupplierService(pool *pgxpool.Pool) SupplierService {
	return &supplierService{pool: pool}
}

func (s *supplierService) CreateSupplier(ctx context.Context, orgCode string, in SupplierInput) (*Supplier, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("supplier name is required")
	}
	org, err := resolveOrg(ctx, s.pool, orgCode)
	if err != nil {
		return nil, err
	}
	var id int64
	err = s.pool.QueryRow(ctx, `
		INSERT INTO suppliers (org_id, name, tax_id, email, phone, address, category, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, org.ID, in.Name, in.TaxID, in.Email, in.Phone, in.Address, in.Category, in.Notes).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to insert supplier: %w", err)
	}
	return s.GetSupplier(ctx, id)
}

func (s *supplierService) UpdateSupplier(ctx context.Context, orgCode string, supplierID int64, in SupplierInput) (*Supplier, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("supplier name is required")
	}
	org, err := resolveOrg(ctx, s.pool, orgCode)
	if err != nil {
		return nil, err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE suppliers
		SET name = $1, tax_id = $2, email = $3, phone = $4, address = $5,
		    category = $6, notes = $7
		WHERE org_id = $8 AND id = $9
	`, in.Name, in.TaxID, in.Email, in.Phone, in.Address, in.Category, in.Notes, org.ID, supplierID)
	if err != nil {
		return nil, fmt.Errorf("failed to update supplier %d: %w", supplierID, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("supplier %d not found", supplierID)
	}
	return s.GetSupplier(ctx, supplierID)
}

func (s *supplierService) DeactivateSupplier(ctx context.Context, orgCode string, supplierID int64) error {
	org, err := resolveOrg(ctx, s.pool, orgCode)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		"UPDATE suppliers SET is_active = false WHERE org_id = $1 AND id = $2",
		org.ID, supplierID,
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate supplier %d: %w", supplierID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("supplier %d not found", supplierID)
	}
	return nil
}

func (s *supplierService) GetSupplier(ctx context.Context, supplierID int64) (*Supplier, error) {
	var sp Supplier
	err := s.pool.QueryRow(ctx, `
		SELECT id, org_id, name, tax_id, email, phone, address, category, notes, is_active, created_at
		FROM suppliers WHERE id = $1
	`, supplierID).Scan(
		&sp.ID, &sp.OrgID, &sp.Name, &sp.TaxID, &sp.Email, &sp.Phone,
		&sp.Address, &sp.Category, &sp.Notes, &sp.IsActive, &sp.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("supplier %d not found", supplierID)
		}
		return nil, fmt.Errorf("failed to fetch supplier %d: %w", supplierID, err)
	}
	return &sp, nil
}

func (s *supplierService) ListSuppliers(ctx context.Context, orgCode string, includeInactive bool) ([]Supplier, error) {
	org, err := resolveOrg(ctx, s.pool, orgCode)
	if err != nil {
		return nil, err
	}
	query := `
		SELECT id, org_id, name, tax_id, email, phone, address, category, notes, is_active, created_at
		FROM suppliers WHERE org_id = $1
	`
	if !includeInactive {
		query += " AND is_active = true"
	}
	query += " ORDER BY name"

	rows, err := s.pool.Query(ctx, query, org.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query suppliers: %w", err)
	}
	defer rows.Close()

	var suppliers []Supplier
	for rows.Next() {
		var sp Supplier
		if err := rows.Scan(
			&sp.ID, &sp.OrgID, &sp.Name, &sp.TaxID, &sp.Email, &sp.Phone,
			&sp.Address, &sp.Category, &sp.Notes, &sp.IsActive, &sp.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan supplier: %w", err)
		}
		suppliers = append(suppliers, sp)
	}
	return suppliers, nil
}
