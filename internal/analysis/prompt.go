package analysis

import (
	"fmt"
	"strings"

	"github.com/kiranshivaraju/threatlens/pkg/models"
)

const promptHeader = `Ты эксперт по кибербезопасности. Проанализируй предоставленный код и:
1. Определи категорию угрозы
2. Найди все опасные участки кода
3. Верни ответ в JSON формате:

{
    "category": "название категории",
    "dangerous_lines": [
        {
            "line_number": номер строки,
            "code": "опасный код",
            "reason": "описание угрозы"
        }
    ]
}

Категории угроз:
`

const promptFooter = `
Для каждого опасного участка укажи:
- ТОЧНЫЙ НОМЕР СТРОКИ УЧИТЫВАЯ ПУСТЫЕ СТРОКИ КАК ОТДЕЛЬНЫЕ
- Код этой строки
- Четкое объяснение, почему это опасно`

// SystemPrompt renders the classification instruction. The category list comes
// from the same taxonomy that ParseClassification validates against.
func SystemPrompt() string {
	var b strings.Builder
	b.WriteString(promptHeader)
	for _, c := range models.ThreatCategories() {
		b.WriteString("- ")
		b.WriteString(c.String())
		b.WriteString("\n")
	}
	b.WriteString(promptFooter)
	return b.String()
}

// RepoDescriptionPrompt asks for a one or two sentence summary of a repository.
func RepoDescriptionPrompt(description, language string) string {
	return fmt.Sprintf(`Проанализируй описание GitHub репозитория и кратко охарактеризуй его назначение и функциональность.
Описание: %s
Основной язык: %s

Ответ должен быть кратким (1-2 предложения) и содержать только суть проекта.`, description, language)
}
