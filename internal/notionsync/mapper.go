package notionsync

import (
	"fmt"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/finance-coach/internal/domain"
)

// categoryTypeLabels are the Spanish select-option names the Notion board
// shows for each category type.
var categoryTypeLabels = map[domain.CategoryType]string{
	domain.CategoryIncome:          "Ingreso",
	domain.CategoryFixedExpense:    "Gasto Fijo",
	domain.CategoryVariableExpense: "Gasto Variable",
	domain.CategorySavings:         "Ahorro",
}

// CategoryToNotionProperties converts one budget category to Notion
// properties. The category key (budget + name + type) lands in a rich-text
// property so a later sync can match pages to categories for idempotency.
func CategoryToNotionProperties(cat domain.Category, subs []domain.Subcategory) notionapi.Properties {
	props := notionapi.Properties{
		"Categoría": notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: cat.Name,
					},
				},
			},
		},
		"Clave": notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: CategoryKey(cat),
					},
				},
			},
		},
		"Tipo": notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: categoryTypeLabels[cat.Type],
			},
		},
		"Presupuesto": notionapi.NumberProperty{
			Number: float64(cat.BudgetedAmount),
		},
		"Desglosada": notionapi.CheckboxProperty{
			Checkbox: cat.HasSubcategories,
		},
	}

	// Subcategory breakdown rendered as one line per sub; Notion relations
	// would need a second database and page lookups that this export does
	// not maintain.
	if len(subs) > 0 {
		var lines []notionapi.RichText
		for i, s := range subs {
			content := fmt.Sprintf("%s: %d", s.Name, int64(s.Amount))
			if i < len(subs)-1 {
				content += "\n"
			}
			lines = append(lines, notionapi.RichText{
				Type: notionapi.ObjectTypeText,
				Text: &notionapi.Text{
					Content: content,
				},
			})
		}
		props["Subcategorías"] = notionapi.RichTextProperty{
			RichText: lines,
		}
	}

	return props
}

// CategoryKey is the stable identity of a category page in Notion. It
// mirrors the storage uniqueness constraint (budget_id, name, category_type).
func CategoryKey(cat domain.Category) string {
	return fmt.Sprintf("%s|%s|%s", cat.BudgetID, cat.Name, cat.Type)
}
