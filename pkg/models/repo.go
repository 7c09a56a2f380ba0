package models

// Placeholders used when GitHub omits a metadata field.
const (
	DescriptionPlaceholder = "Описание отсутствует"
	LanguagePlaceholder    = "Не указан"
)

// RepoSummary is repository metadata gathered for a single request. It is
// never persisted.
type RepoSummary struct {
	Description string `json:"description"`
	Language    string `json:"language"`
	Stars       int    `json:"stars"`
	Forks       int    `json:"forks"`

	// DefaultBranch is used to pick the archive to download.
	DefaultBranch string `json:"-"`
	// HasDescription is false when GitHub returned no description at all.
	HasDescription bool `json:"-"`
}

// FileResult is the analysis outcome for one file of a repository.
type FileResult struct {
	File           string       `json:"file"`
	Result         string       `json:"result"`
	DangerousLines []DangerSpot `json:"dangerous_lines"`
	FullCode       []string     `json:"full_code"`
}
