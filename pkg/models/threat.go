package models

import "fmt"

// ThreatCategory is one of the fixed classification labels. The wire value is
// the label itself; the classifier is instructed to answer with these exact strings.
type ThreatCategory string

const (
	CategorySafe             ThreatCategory = "Безопасный код"
	CategoryPUA              ThreatCategory = "Потенциально нежелательные приложения (PUA)"
	CategoryPhishing         ThreatCategory = "Фишинг"
	CategoryDataExfiltration ThreatCategory = "Эксфильтрация данных"
	CategoryPIIExfiltration  ThreatCategory = "Эксфильтрация PII"
	CategoryBackdoor         ThreatCategory = "Бэкдор"
	CategoryMiner            ThreatCategory = "Майнер / Похититель криптовалюты"
	CategoryOtherMalicious   ThreatCategory = "Другие вредоносные пакеты"
)

// CategoryAnalysisError labels a synthetic result produced when a snippet could
// not be classified. It is not a member of the taxonomy and is never persisted.
const CategoryAnalysisError ThreatCategory = "Ошибка анализа"

// threatCategories lists the taxonomy in prompt order.
var threatCategories = []ThreatCategory{
	CategorySafe,
	CategoryPUA,
	CategoryPhishing,
	CategoryDataExfiltration,
	CategoryPIIExfiltration,
	CategoryBackdoor,
	CategoryMiner,
	CategoryOtherMalicious,
}

// ThreatCategories returns a copy of the taxonomy in prompt order.
func ThreatCategories() []ThreatCategory {
	out := make([]ThreatCategory, len(threatCategories))
	copy(out, threatCategories)
	return out
}

func (c ThreatCategory) String() string {
	return string(c)
}

// Valid reports whether c is one of the eight taxonomy labels.
func (c ThreatCategory) Valid() bool {
	for _, known := range threatCategories {
		if c == known {
			return true
		}
	}
	return false
}

// IsSafe reports whether c is the safe label.
func (c ThreatCategory) IsSafe() bool {
	return c == CategorySafe
}

// ParseCategory matches s exactly against the taxonomy.
func ParseCategory(s string) (ThreatCategory, error) {
	c := ThreatCategory(s)
	if !c.Valid() {
		return "", fmt.Errorf("invalid threat category: %q", s)
	}
	return c, nil
}

// FileErrorResult formats the result string reported for a repository file that
// could not be analyzed.
func FileErrorResult(err error) string {
	return fmt.Sprintf("%s: %v", CategoryAnalysisError, err)
}
