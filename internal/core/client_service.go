package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ClientInput is the editable subset of a client. Foreign clients must carry a
// currency other than the organization's base currency.
type ClientInput struct {
	Name     string
	TaxID    string
	Email    string
	Phone    string
	Address  string
	Foreign  bool
	Currency string
}

// ClientService manages billing customers and their balance buckets. Deposits
// feed the deposit bucket; credit-note refunds feed the credit bucket (see
// CreditNoteService); balance payments draw both down.
type ClientService interface {
	CreateClient(ctx context.Context, orgCode string, in ClientInput) (*Client, error)
	UpdateClient(ctx context.Context, orgCode string, clientID int64, in ClientInput) (*Client, error)
	DeactivateClient(ctx context.Context, orgCode string, clientID int64) error
	GetClient(ctx context.Context, clientID int64) (*Client, error)
	ListClients(ctx context.Context, orgCode string, includeInactive bool) ([]Client, error)
	// RecordDeposit adds money to the client's deposit bucket.
	RecordDeposit(ctx context.Context, orgCode string, clientID int64, amount decimal.Decimal, notes string) (*Client, error)
}

type clientService struct {
	pool *pgxpool.Pool
}

func NewClientService(pool *pgxpool.Pool) ClientService {
	return &clientService{pool: pool}
}

func validateClientInput(org *Organization, in ClientInput) error {
	if in.Name == "" {
		return fmt.Errorf("client name is required")
	}
	if in.Foreign {
		if in.Currency == "" || in.Currency == org.BaseCurrency {
			return fmt.Errorf("foreign client requires a currency other than %s", org.BaseCurrency)
		}
	}
	return nil
}

func (s *clientService) CreateClient(ctx context.Context, orgCode string, in ClientInput) (*Client, error) {
	org, err := resolveOrg(ctx, s.pool, orgCode)
	if err != nil {
		return nil, err
	}
	if err := validateClientInput(org, in); err != nil {
		return nil, err
	}
	currency := in.Currency
	if !in.Foreign {
		currency = org.BaseCurrency
	}

	var id int64
	err = s.pool.QueryRow(ctx, `
		INSERT INTO clients (org_id, name, tax_id, email, phone, address, is_foreign, currency)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, org.ID, in.Name, in.TaxID, in.Email, in.Phone, in.Address, in.Foreign, currency).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to insert client: %w", err)
	}
	return s.GetClient(ctx, id)
}

func (s *clientService) UpdateClient(ctx context.Context, orgCode string, clientID int64, in ClientInput) (*Client, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	org, err := resolveOrg(ctx, tx, orgCode)
	if err != nil {
		return nil, err
	}
	if err := validateClientInput(org, in); err != nil {
		return nil, err
	}

	var wasForeign bool
	var invoiceCount int
	err = tx.QueryRow(ctx, `
		SELECT c.is_foreign, COUNT(i.id)
		FROM clients c
		LEFT JOIN invoices i ON i.client_id = c.id
		WHERE c.org_id = $1 AND c.id = $2
		GROUP BY c.is_foreign
	`, org.ID, clientID).Scan(&wasForeign, &invoiceCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("client %d not found", clientID)
		}
		return nil, fmt.Errorf("failed to load client %d: %w", clientID, err)
	}
	// Flipping the foreign flag would silently change the tax treatment of
	// every existing invoice's context, so it is frozen once invoices exist.
	if wasForeign != in.Foreign && invoiceCount > 0 {
		return nil, fmt.Errorf("client %d has invoices; the foreign flag cannot change", clientID)
	}

	currency := in.Currency
	if !in.Foreign {
		currency = org.BaseCurrency
	}
	_, err = tx.Exec(ctx, `
		UPDATE clients
		SET name = $1, tax_id = $2, email = $3, phone = $4, address = $5,
		    is_foreign = $6, currency = $7
		WHERE id = $8
	`, in.Name, in.TaxID, in.Email, in.Phone, in.Address, in.Foreign, currency, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to update client %d: %w", clientID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit client update: %w", err)
	}
	return s.GetClient(ctx, clientID)
}

func (s *clientService) DeactivateClient(ctx context.Context, orgCode string, clientID int64) error {
	org, err := resolveOrg(ctx, s.pool, orgCode)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		"UPDATE clients SET is_active = false WHERE org_id = $1 AND id = $2",
		org.ID, clientID,
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate client %d: %w", clientID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("client %d not found", clientID)
	}
	return nil
}

func (s *clientService) GetClient(ctx context.Context, clientID int64) (*Client, error) {
	var c Client
	err := s.pool.QueryRow(ctx, `
		SELECT id, org_id, name, tax_id, email, phone, address,
		       is_foreign, currency, credit_balance, deposit_balance, is_active, created_at
		FROM clients WHERE id = $1
	`, clientID).Scan(
		&c.ID, &c.OrgID, &c.Name, &c.TaxID, &c.Email, &c.Phone, &c.Address,
		&c.Foreign, &c.Currency, &c.CreditBalance, &c.DepositBalance, &c.IsActive, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("client %d not found", clientID)
		}
		return nil, fmt.Errorf("failed to fetch client %d: %w", clientID, err)
	}
	return &c, nil
}

func (s *clientService) ListClients(ctx context.Context, orgCode string, includeInactive bool) ([]Client, error) {
	org, err := resolveOrg(ctx, s.pool, orgCode)
	if err != nil {
		return nil, err
	}
	query := `
		SELECT id, org_id, name, tax_id, email, phone, address,
		       is_foreign, currency, credit_balance, deposit_balance, is_active, created_at
		FROM clients WHERE org_id = $1
	`
	if !includeInactive {
		query += " AND is_active = true"
	}
	query += " ORDER BY name"

	rows, err := s.pool.Query(ctx, query, org.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}
	defer rows.Close()

	var clients []Client
	for rows.Next() {
		var c Client
		if err := rows.Scan(
			&c.ID, &c.OrgID, &c.Name, &c.TaxID, &c.Email, &c.Phone, &c.Address,
			&c.Foreign, &c.Currency, &c.CreditBalance, &c.DepositBalance, &c.IsActive, &c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, c)
	}
	return clients, nil
}

func (s *clientService) RecordDeposit(ctx context.Context, orgCode string, clientID int64, amount decimal.Decimal, notes string) (*Client, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("deposit amount must be positive, got %s", amount)
	}
	org, err := resolveOrg(ctx, s.pool, orgCode)
	if err != nil {
		return nil, err
	}
	tag, err := s.pool.Exec(ctx,
		"UPDATE clients SET deposit_balance = deposit_balance + $1 WHERE org_id = $2 AND id = $3",
		amount, org.ID, clientID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record deposit for client %d: %w", clientID, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("client %d not found", clientID)
	}
	return s.GetClient(ctx, clientID)
}
