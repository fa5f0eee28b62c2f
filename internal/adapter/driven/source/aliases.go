package source

import "strings"

// columnAliases maps workbook headers, English and Spanish, to canonical
// column names.
var columnAliases = map[string]string{
	// Dashboard
	"mes":                    "period",
	"month":                  "period",
	"periodo":                "period",
	"renta base":             "rent_base",
	"rent base":              "rent_base",
	"base rent":              "rent_base",
	"cobrado":                "collected",
	"collected":              "collected",
	"no cobrado":             "uncollected",
	"uncollected":            "uncollected",
	"m2 rentados":            "leased_area",
	"leased sqft":            "leased_area",
	"leased_sqft":            "leased_area",
	"sqft arrendado":         "leased_area",
	"leased area":            "leased_area",
	"precio m2/año":          "derived_price_per_area",
	"price per sf/yr":        "derived_price_per_area",
	"price_per_sf_yr":        "derived_price_per_area",
	"price per area":         "derived_price_per_area",
	"derived price per area": "derived_price_per_area",

	// Expenses
	"concepto":         "line_item",
	"item":             "line_item",
	"line item":        "line_item",
	"real":             "actual_amount",
	"actual":           "actual_amount",
	"categoria":        "category",
	"categoría":        "category",
	"expense_category": "category",
	"expense category": "category",

	// Lease roster
	"suite":          "suite_id",
	"unidad":         "suite_id",
	"edificio":       "building",
	"inquilino":      "tenant",
	"m2":             "area",
	"sqft":           "area",
	"renta mensual":  "rent_monthly",
	"rent monthly":   "rent_monthly",
	"monthly rent":   "rent_monthly",
	"renta anual":    "rent_annual",
	"rent annual":    "rent_annual",
	"annual rent":    "rent_annual",
	"renta $/m2/año": "rent_per_area_year",
	"rent psf yr":    "rent_per_area_year",
	"rent_psf_yr":    "rent_per_area_year",
	"$/sf/yr":        "rent_per_area_year",
	"vacante":        "is_vacant",
	"vacant":         "is_vacant",
	"uso propio":     "is_own_use",
	"own use":        "is_own_use",
}

// normalizeHeader lowercases, collapses whitespace and resolves aliases.
// Unknown headers become snake_case and pass through.
func normalizeHeader(h string) string {
	key := strings.Join(strings.Fields(strings.ToLower(h)), " ")
	if canonical, ok := columnAliases[key]; ok {
		return canonical
	}
	return strings.NewReplacer(" ", "_", "-", "_").Replace(key)
}
