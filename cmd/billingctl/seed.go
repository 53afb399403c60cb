package main

// seedSQL creates a small demo dataset for local development. It is
// idempotent: the organization upsert keys on org_code and the dependent
// inserts are skipped when the org already has rows.
const seedSQL = `
WITH org AS (
    INSERT INTO organizations (org_code, name, invoice_prefix, stamp_enabled, stamp_amount, withholding_rate, withholding_threshold, max_discount_percent)
    VALUES ('DEMO', 'Société Demo SARL', 'FAC', true, 1.000, 1.5, 1000, 50)
    ON CONFLICT (org_code) DO UPDATE SET name = EXCLUDED.name
    RETURNING id
),
demo_clients AS (
    INSERT INTO clients (org_id, name, tax_id, email, is_foreign, currency)
    SELECT org.id, c.name, c.tax_id, c.email, c.is_foreign, c.currency
    FROM org, (VALUES
        ('Client Local SARL', '1234567A', 'contact@local.tn', false, 'TND'),
        ('Acme Export GmbH', '', 'billing@acme.example', true, 'EUR')
    ) AS c(name, tax_id, email, is_foreign, currency)
    WHERE NOT EXISTS (SELECT 1 FROM clients WHERE clients.org_id = org.id)
),
demo_suppliers AS (
    INSERT INTO suppliers (org_id, name, category, email)
    SELECT org.id, s.name, s.category, s.email
    FROM org, (VALUES
        ('Papeterie du Centre', 'fournitures', 'ventes@papeterie.tn'),
        ('TunisieTel', 'telecom', 'pro@tunisietel.tn')
    ) AS s(name, category, email)
    WHERE NOT EXISTS (SELECT 1 FROM suppliers WHERE suppliers.org_id = org.id)
)
INSERT INTO products (org_id, name, description, unit_price_ht, vat_rate, current_stock, unlimited_stock)
SELECT org.id, p.name, p.description, p.price, p.vat, p.stock, p.unlimited
FROM org, (VALUES
    ('Prestation conseil', 'Journée de conseil', 450.000, 19, 0, true),
    ('Licence logicielle', 'Licence annuelle', 120.000, 19, 100, false),
    ('Formation', 'Session de formation (7% TVA)', 300.000, 7, 20, false)
) AS p(name, description, price, vat, stock, unlimited)
WHERE NOT EXISTS (SELECT 1 FROM products WHERE products.org_id = org.id);
`
