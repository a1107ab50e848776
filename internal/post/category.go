package post

// Category is a topic label assigned by keyword classification.
type Category string

const (
	CategoryAI       Category = "AI 기술"
	CategoryScience  Category = "과학 기술"
	CategoryIndustry Category = "산업 동향"
	CategoryResearch Category = "연구 개발"
	CategoryPolicy   Category = "정책 및 규제"
	CategoryOther    Category = "기타"
)

// Categories lists the scored categories in canonical order. Classification
// ties resolve to the category that appears first here.
var Categories = []Category{
	CategoryAI,
	CategoryScience,
	CategoryResearch,
	CategoryIndustry,
	CategoryPolicy,
}

// CanonicalOrder is the order categories appear in a rendered report.
var CanonicalOrder = append(append([]Category{}, Categories...), CategoryOther)

var categoryIcons = map[Category]string{
	CategoryAI:       "🤖",
	CategoryScience:  "🔬",
	CategoryIndustry: "📈",
	CategoryResearch: "🔍",
	CategoryPolicy:   "📋",
	CategoryOther:    "📌",
}

// Icon returns the report icon for the category.
func (c Category) Icon() string {
	if icon, ok := categoryIcons[c]; ok {
		return icon
	}
	return "📄"
}

func (c Category) String() string {
	return string(c)
}
