package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// OrgSettingsInput is the editable billing configuration of an organization.
type OrgSettingsInput struct {
	Name                 string
	InvoicePrefix        string
	StampEnabled         bool
	StampAmount          decimal.Decimal
	WithholdingRate      decimal.Decimal
	WithholdingThreshold decimal.Decimal
	MaxDiscountPercent   decimal.Decimal
}

// CustomTaxInput defines one org-level custom tax. Position orders taxes
// within their phase; percentage taxes apply to the running total, so order
// changes the result.
type CustomTaxInput struct {
	Name        string
	ValueType   TaxValueType
	Value       decimal.Decimal
	Application TaxApplication
	Order       TaxOrder
	Position    int
}

// OrgService exposes organization configuration: fiscal stamp, withholding
// defaults, discount ceiling, and the custom tax list. Changes affect future
// invoices only; amounts already frozen on invoice_taxes stay as issued.
type OrgService interface {
	GetOrganization(ctx context.Context, orgCode string) (*Organization, error)
	UpdateSettings(ctx context.Context, orgCode string, in OrgSettingsInput) (*Organization, error)
	ListCustomTaxes(ctx context.Context, orgCode string) ([]CustomTax, error)
	AddCustomTax(ctx context.Context, orgCode string, in CustomTaxInput) error
	RemoveCustomTax(ctx context.Context, orgCode string, name string) error
}

type orgService struct {
	pool *pgxpool.Pool
}

func NewOrgService(pool *pgxpool.Pool) OrgService {
	return &orgService{pool: pool}
}

func (s *orgService) GetOrganization(ctx context.Context, orgCode string) (*Organization, error) {
	return resolveOrg(ctx, s.pool, orgCode)
}

func (s *orgService) UpdateSettings(ctx context.Context, orgCode string, in OrgSettingsInput) (*Organization, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("organization name is required")
	}
	if in.InvoicePrefix == "" {
		return nil, fmt.Errorf("invoice prefix is required")
	}
	if in.StampAmount.IsNegative() {
		return nil, fmt.Errorf("stamp amount cannot be negative, got %s", in.StampAmount)
	}
	if in.WithholdingRate.IsNegative() || in.WithholdingRate.GreaterThan(hundred) {
		return nil, fmt.Errorf("withholding rate %s outside [0, 100]", in.WithholdingRate)
	}
	if in.MaxDiscountPercent.IsNegative() || in.MaxDiscountPercent.GreaterThan(hundred) {
		return nil, fmt.Errorf("max discount %s outside [0, 100]", in.MaxDiscountPercent)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE organizations
		SET name = $1, invoice_prefix = $2, stamp_enabled = $3, stamp_amount = $4,
		    withholding_rate = $5, withholding_threshold = $6, max_discount_percent = $7
		WHERE org_code = $8
	`, in.Name, in.InvoicePrefix, in.StampEnabled, in.StampAmount,
		in.WithholdingRate, in.WithholdingThreshold, in.MaxDiscountPercent, orgCode)
	if err != nil {
		return nil, fmt.Errorf("failed to update organization %s: %w", orgCode, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("organization %s not found", orgCode)
	}
	return resolveOrg(ctx, s.pool, orgCode)
}

func (s *orgService) ListCustomTaxes(ctx context.Context, orgCode string) ([]CustomTax, error) {
	org, err := resolveOrg(ctx, s.pool, orgCode)
	if err != nil {
		return nil, err
	}
	return loadActiveTaxes(ctx, s.pool, org.ID)
}

func (s *orgService) AddCustomTax(ctx context.Context, orgCode string, in CustomTaxInput) error {
	if in.Name == "" {
		return fmt.Errorf("custom tax name is required")
	}
	if in.ValueType != TaxValueFixed && in.ValueType != TaxValuePercentage {
		return fmt.Errorf("unknown tax value type %q", in.ValueType)
	}
	if in.Application != TaxApplicationAdd && in.Application != TaxApplicationDeduct {
		return fmt.Errorf("unknown tax application %q", in.Application)
	}
	if in.Order != TaxOrderBeforeStamp && in.Order != TaxOrderAfterStamp {
		return fmt.Errorf("unknown tax order %q", in.Order)
	}
	if in.Value.IsNegative() {
		return fmt.Errorf("tax value cannot be negative, got %s", in.Value)
	}

	org, err := resolveOrg(ctx, s.pool, orgCode)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO custom_taxes (org_id, name, value_type, value, application_type, application_order, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, org.ID, in.Name, in.ValueType, in.Value, in.Application, in.Order, in.Position)
	if err != nil {
		return fmt.Errorf("failed to insert custom tax %q: %w", in.Name, err)
	}
	return nil
}

func (s *orgService) RemoveCustomTax(ctx context.Context, orgCode string, name string) error {
	org, err := resolveOrg(ctx, s.pool, orgCode)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		"UPDATE custom_taxes SET is_active = false WHERE org_id = $1 AND name = $2 AND is_active = true",
		org.ID, name,
	)
	if err != nil {
		return fmt.Errorf("failed to remove custom tax %q: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("custom tax %q not found", name)
	}
	return nil
}
