// Package schema declares the contract extraction schema: every field the
// structured extractor may populate, its category, type and scoring weight.
package schema

import (
	"maps"

	"github.com/joseph-ayodele/contract-intelligence/constants"
)

// Type is the JSON shape a field value must take.
type Type string

const (
	TypeString     Type = "string"
	TypeStringList Type = "string_list"
	TypeNumber     Type = "number"
	TypeBoolean    Type = "boolean"
	TypeObject     Type = "object"
	TypeObjectList Type = "object_list"
)

// Field is one entry of the extraction schema.
type Field struct {
	Name        string
	Category    constants.Category
	Type        Type
	Weight      float64
	Description string
	// Constraint replaces the JSON Schema derived from Type when set.
	Constraint map[string]any
}

// JSONSchema returns the JSON Schema a field's value must satisfy.
func (f Field) JSONSchema() map[string]any {
	if f.Constraint != nil {
		return maps.Clone(f.Constraint)
	}
	switch f.Type {
	case TypeString:
		return map[string]any{"type": "string", "minLength": 1}
	case TypeStringList:
		return map[string]any{"type": "array", "minItems": 1, "items": map[string]any{"type": "string", "minLength": 1}}
	case TypeNumber:
		return map[string]any{"type": "number"}
	case TypeBoolean:
		return map[string]any{"type": "boolean"}
	case TypeObject:
		return map[string]any{"type": "object", "minProperties": 1}
	case TypeObjectList:
		return map[string]any{"type": "array", "minItems": 1, "items": map[string]any{"type": "object"}}
	default:
		return map[string]any{}
	}
}

var contact = map[string]any{
	"type":          "object",
	"minProperties": 1,
	"properties": map[string]any{
		"name":  map[string]any{"type": "string"},
		"email": map[string]any{"type": "string"},
		"phone": map[string]any{"type": "string"},
	},
}

// fields is declared in gap tie-break order within each category.
var fields = []Field{
	// Party Identification
	{Name: "parties", Category: constants.PartyIdentification, Type: TypeObjectList, Weight: 3,
		Description: "Contracting parties, each with name and role (e.g. client, vendor)",
		Constraint: map[string]any{
			"type": "array", "minItems": 1,
			"items": map[string]any{
				"type":     "object",
				"required": []any{"name"},
				"properties": map[string]any{
					"name": map[string]any{"type": "string", "minLength": 1},
					"role": map[string]any{"type": "string"},
				},
			},
		}},
	{Name: "legal_entity_names", Category: constants.PartyIdentification, Type: TypeStringList, Weight: 2,
		Description: "Full legal entity names of the parties"},
	{Name: "registration_details", Category: constants.PartyIdentification, Type: TypeString, Weight: 1,
		Description: "Company registration numbers, jurisdictions or addresses"},
	{Name: "authorized_signatories", Category: constants.PartyIdentification, Type: TypeStringList, Weight: 2,
		Description: "People who sign on behalf of each party"},

	// Account Information
	{Name: "billing_details", Category: constants.AccountInformation, Type: TypeString, Weight: 2,
		Description: "Billing address and invoicing instructions"},
	{Name: "account_numbers", Category: constants.AccountInformation, Type: TypeStringList, Weight: 1,
		Description: "Customer or account numbers"},
	{Name: "references", Category: constants.AccountInformation, Type: TypeStringList, Weight: 1,
		Description: "Purchase order, contract or reference numbers"},
	{Name: "billing_contact", Category: constants.AccountInformation, Type: TypeObject, Weight: 1,
		Description: "Billing contact with name, email, phone", Constraint: contact},
	{Name: "technical_contact", Category: constants.AccountInformation, Type: TypeObject, Weight: 1,
		Description: "Technical contact with name, email, phone", Constraint: contact},

	// Financial Details
	{Name: "line_items", Category: constants.FinancialDetails, Type: TypeObjectList, Weight: 3,
		Description: "Priced items with description, quantity, unit_price, total",
		Constraint: map[string]any{
			"type": "array", "minItems": 1,
			"items": map[string]any{
				"type":     "object",
				"required": []any{"description"},
				"properties": map[string]any{
					"description": map[string]any{"type": "string", "minLength": 1},
					"quantity":    map[string]any{"type": "number"},
					"unit_price":  map[string]any{"type": "number"},
					"total":       map[string]any{"type": "number"},
				},
			},
		}},
	{Name: "total_contract_value", Category: constants.FinancialDetails, Type: TypeNumber, Weight: 3,
		Description: "Total contract value as a number",
		Constraint:  map[string]any{"type": "number", "minimum": 0}},
	{Name: "currency", Category: constants.FinancialDetails, Type: TypeString, Weight: 2,
		Description: "ISO 4217 currency code",
		Constraint:  map[string]any{"type": "string", "pattern": "^[A-Z]{3}$"}},
	{Name: "tax_information", Category: constants.FinancialDetails, Type: TypeString, Weight: 1,
		Description: "Tax rates, VAT or withholding terms"},
	{Name: "additional_fees", Category: constants.FinancialDetails, Type: TypeStringList, Weight: 1,
		Description: "Setup, late or other fees"},

	// Payment Structure
	{Name: "payment_terms", Category: constants.PaymentStructure, Type: TypeString, Weight: 3,
		Description: "Payment terms such as Net 30"},
	{Name: "payment_schedules", Category: constants.PaymentStructure, Type: TypeStringList, Weight: 2,
		Description: "Installments or milestone schedule"},
	{Name: "due_dates", Category: constants.PaymentStructure, Type: TypeStringList, Weight: 1,
		Description: "Payment due dates (YYYY-MM-DD where possible)"},
	{Name: "payment_methods", Category: constants.PaymentStructure, Type: TypeStringList, Weight: 1,
		Description: "Accepted payment methods"},
	{Name: "banking_details", Category: constants.PaymentStructure, Type: TypeString, Weight: 1,
		Description: "Bank account or remittance details"},

	// Service Level Agreements
	{Name: "performance_metrics", Category: constants.ServiceLevelAgreements, Type: TypeStringList, Weight: 3,
		Description: "Uptime, response time or delivery metrics"},
	{Name: "benchmarks", Category: constants.ServiceLevelAgreements, Type: TypeStringList, Weight: 1,
		Description: "Targets the metrics are measured against"},
	{Name: "penalty_clauses", Category: constants.ServiceLevelAgreements, Type: TypeStringList, Weight: 2,
		Description: "Penalties or service credits for missed targets"},
	{Name: "remedies", Category: constants.ServiceLevelAgreements, Type: TypeStringList, Weight: 1,
		Description: "Remedies available on breach"},
	{Name: "support_terms", Category: constants.ServiceLevelAgreements, Type: TypeString, Weight: 2,
		Description: "Support hours, channels and response commitments"},
	{Name: "maintenance_terms", Category: constants.ServiceLevelAgreements, Type: TypeString, Weight: 1,
		Description: "Maintenance windows and obligations"},

	// Revenue Classification
	{Name: "recurring_payments", Category: constants.RevenueClassification, Type: TypeBoolean, Weight: 1,
		Description: "Whether the contract has recurring payments"},
	{Name: "one_time_payments", Category: constants.RevenueClassification, Type: TypeBoolean, Weight: 1,
		Description: "Whether the contract has one-time payments"},
	{Name: "subscription_model", Category: constants.RevenueClassification, Type: TypeString, Weight: 1,
		Description: "Subscription or licensing model"},
	{Name: "billing_cycles", Category: constants.RevenueClassification, Type: TypeString, Weight: 2,
		Description: "Billing cycle such as monthly, quarterly or annual"},
	{Name: "renewal_terms", Category: constants.RevenueClassification, Type: TypeString, Weight: 1,
		Description: "Renewal conditions"},
	{Name: "auto_renewal", Category: constants.RevenueClassification, Type: TypeBoolean, Weight: 1,
		Description: "Whether the contract renews automatically"},
}

// aliases map names a model tends to return onto schema field names.
var aliases = map[string]string{
	"party_names":            "parties",
	"legal_entity_name":      "legal_entity_names",
	"signatories":            "authorized_signatories",
	"account_number":         "account_numbers",
	"reference_numbers":      "references",
	"total_value":            "total_contract_value",
	"contract_value":         "total_contract_value",
	"currency_code":          "currency",
	"tax":                    "tax_information",
	"fees":                   "additional_fees",
	"payment_schedule":       "payment_schedules",
	"payment_method":         "payment_methods",
	"bank_details":           "banking_details",
	"sla_metrics":            "performance_metrics",
	"penalties":              "penalty_clauses",
	"billing_cycle":          "billing_cycles",
	"renewal":                "renewal_terms",
	"automatic_renewal":      "auto_renewal",
	"recurring":              "recurring_payments",
	"one_time":               "one_time_payments",
	"support":                "support_terms",
	"maintenance":            "maintenance_terms",
	"registration":           "registration_details",
	"billing_contact_person": "billing_contact",
}

var byName = func() map[string]Field {
	m := make(map[string]Field, len(fields))
	for _, f := range fields {
		m[f.Name] = f
	}
	return m
}()

// Fields returns the full schema in declaration order.
func Fields() []Field {
	out := make([]Field, len(fields))
	copy(out, fields)
	return out
}

// Lookup resolves a field by its name or a known alias.
func Lookup(name string) (Field, bool) {
	if f, ok := byName[name]; ok {
		return f, true
	}
	if canonical, ok := aliases[name]; ok {
		f, ok := byName[canonical]
		return f, ok
	}
	return Field{}, false
}

// FieldsFor returns the fields of one category in declaration order.
func FieldsFor(c constants.Category) []Field {
	var out []Field
	for _, f := range fields {
		if f.Category == c {
			out = append(out, f)
		}
	}
	return out
}

// ResponseSchema is the JSON Schema of a full extraction response: an object
// keyed by field name whose entries carry a value and a confidence.
func ResponseSchema() map[string]any {
	props := make(map[string]any, len(fields))
	for _, f := range fields {
		props[f.Name] = map[string]any{
			"type":        "object",
			"description": f.Description,
			"properties": map[string]any{
				"value":      f.JSONSchema(),
				"confidence": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
			},
			"required": []any{"value", "confidence"},
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"fields": map[string]any{"type": "object", "properties": props}},
		"required":   []any{"fields"},
	}
}
