package ai

import (
	"context"
	"encoding/json"
	"fmt"

	"invoicing-backend/internal/core"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
	"github.com/openai/openai-go/shared/constant"
)

// InvoiceDraftLine is one proposed invoice line. ProductName is matched
// against the catalog by the caller; unmatched names become free-text lines.
type InvoiceDraftLine struct {
	ProductName     string `json:"product_name" jsonschema_description:"Product name from the catalog, or a free-text description"`
	Quantity        string `json:"quantity" jsonschema_description:"Quantity as a decimal string, e.g. \"2\""`
	UnitPriceHT     string `json:"unit_price_ht" jsonschema_description:"Unit price before VAT as a decimal string; \"0\" to use the catalog price"`
	VATRate         string `json:"vat_rate" jsonschema_description:"VAT rate percent: 0, 7, 13 or 19"`
	DiscountPercent string `json:"discount_percent" jsonschema_description:"Line discount percent, \"0\" if none"`
}

// InvoiceDraft is the structured interpretation of a natural-language invoice
// request. It is a proposal only: the caller resolves names against master
// data and the operator confirms before anything is persisted.
type InvoiceDraft struct {
	ClientName string             `json:"client_name" jsonschema_description:"Client name as mentioned in the request"`
	IssueDate  string             `json:"issue_date" jsonschema_description:"Issue date YYYY-MM-DD, empty if not mentioned"`
	Notes      string             `json:"notes" jsonschema_description:"Free-text notes extracted from the request"`
	Lines      []InvoiceDraftLine `json:"lines"`
	Confidence float64            `json:"confidence" jsonschema_description:"Confidence score between 0.0 and 1.0"`
	Reasoning  string             `json:"reasoning" jsonschema_description:"Short explanation of how the request was interpreted"`
}

// Normalize trims defaults into the draft so downstream parsing never sees
// empty numeric strings.
func (d *InvoiceDraft) Normalize() {
	for i := range d.Lines {
		if d.Lines[i].Quantity == "" {
			d.Lines[i].Quantity = "1"
		}
		if d.Lines[i].UnitPriceHT == "" {
			d.Lines[i].UnitPriceHT = "0"
		}
		if d.Lines[i].VATRate == "" {
			d.Lines[i].VATRate = "19"
		}
		if d.Lines[i].DiscountPercent == "" {
			d.Lines[i].DiscountPercent = "0"
		}
	}
}

// Validate rejects drafts the application layer cannot act on.
func (d *InvoiceDraft) Validate() error {
	if d.ClientName == "" {
		return fmt.Errorf("draft has no client name")
	}
	if len(d.Lines) == 0 {
		return fmt.Errorf("draft has no lines")
	}
	for i, l := range d.Lines {
		if l.ProductName == "" {
			return fmt.Errorf("draft line %d has no product name or description", i+1)
		}
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		return fmt.Errorf("confidence %f outside [0, 1]", d.Confidence)
	}
	return nil
}

// AgentService turns natural language into structured billing actions. All
// outputs are proposals for operator confirmation; the agent never writes.
type AgentService interface {
	GenerateInvoice(ctx context.Context, request string, clientCatalog, productCatalog string) (*InvoiceDraft, error)
	SearchInvoices(ctx context.Context, query string, invoiceIndex string) (*InvoiceSearchResult, error)
	SearchSuppliers(ctx context.Context, query string, supplierIndex string) (*SupplierSearchResult, error)
}

type Agent struct {
	client *openai.Client
	model  shared.ResponsesModel
}

func NewAgent(apiKey string) *Agent {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &Agent{client: &client, model: shared.ResponsesModel(shared.ChatModelGPT4o)}
}

func (a *Agent) GenerateInvoice(ctx context.Context, request string, clientCatalog, productCatalog string) (*InvoiceDraft, error) {
	prompt := fmt.Sprintf(`You are a billing assistant for a Tunisian small business.
Interpret the invoice request below and propose a structured invoice draft.
Rules:
1. Match client and product names against the catalogs when possible; otherwise keep the name as written.
2. Quantities, prices, rates and discounts must be exact decimal strings (e.g. "2", "100.000").
3. VAT rates must be one of 0, 7, 13, 19. Use the catalog rate when the request does not state one.
4. Use "0" as unit_price_ht when the catalog price should apply.
5. Provide a confidence score (0.0-1.0) and explain your reasoning.

Clients:
%s

Products:
%s

Request: %s`, clientCatalog, productCatalog, request)

	var draft InvoiceDraft
	if err := a.structured(ctx, prompt, "invoice_draft",
		"A proposed invoice draft for operator confirmation", &draft); err != nil {
		return nil, err
	}
	draft.Normalize()
	if err := draft.Validate(); err != nil {
		return nil, fmt.Errorf("draft validation failed: %w", err)
	}
	return &draft, nil
}

// structured runs one strict JSON-schema structured-output call and decodes
// the result into out. The schema is reflected from out's concrete type.
func (a *Agent) structured(ctx context.Context, prompt, name, description string, out any) error {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schemaJSON, err := json.Marshal(reflector.Reflect(out))
	if err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}
	var schemaMap map[string]any
	if err := json.Unmarshal(schemaJSON, &schemaMap); err != nil {
		return fmt.Errorf("failed to unmarshal schema to map: %w", err)
	}

	params := responses.ResponseNewParams{
		Model: a.model,
		Input: responses.ResponseNewParamsInputUnion{
			OfString: param.NewOpt(prompt),
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Type:        constant.JSONSchema("json_schema"),
					Name:        name,
					Strict:      param.NewOpt(true),
					Schema:      schemaMap,
					Description: param.NewOpt(description),
				},
			},
		},
	}

	resp, err := a.client.Responses.New(ctx, params)
	if err != nil {
		return fmt.Errorf("openai responses error: %w", err)
	}
	content := resp.OutputText()
	if content == "" {
		return fmt.Errorf("empty response content")
	}
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("failed to parse completion: %w", err)
	}
	return nil
}

var _ AgentService = (*Agent)(nil)

// ResolveDraftLines maps a draft's product names onto catalog products by
// case-insensitive exact match, returning the line requests the invoice
// service accepts. Unmatched names stay as free-text description lines.
func ResolveDraftLines(draft *InvoiceDraft, products []core.Product) ([]core.InvoiceLineRequest, error) {
	byName := make(map[string]core.Product, len(products))
	for _, p := range products {
		byName[normalizeName(p.Name)] = p
	}

	lines := make([]core.InvoiceLineRequest, 0, len(draft.Lines))
	for i, dl := range draft.Lines {
		req, err := draftLineRequest(dl)
		if err != nil {
			return nil, fmt.Errorf("draft line %d: %w", i+1, err)
		}
		if p, ok := byName[normalizeName(dl.ProductName)]; ok {
			id := p.ID
			req.ProductID = &id
		}
		lines = append(lines, req)
	}
	return lines, nil
}
