package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kiranshivaraju/threatlens/pkg/models"
)

// Sentinel errors for classifier replies that break the contract.
var (
	ErrMalformedResponse = errors.New("malformed classifier response")
	ErrUnknownCategory   = errors.New("unknown threat category")
	ErrMissingEvidence   = errors.New("dangerous category without dangerous lines")
)

// wireReply is the untrusted shape of a classifier reply. Pointers distinguish
// absent fields from zero values.
type wireReply struct {
	Category       *string           `json:"category"`
	DangerousLines []json.RawMessage `json:"dangerous_lines"`
}

type wireSpot struct {
	LineNumber *json.Number `json:"line_number"`
	Code       string       `json:"code"`
	Reason     string       `json:"reason"`
}

// ParseClassification validates a raw classifier reply and converts it into a
// trusted Classification. Any error means the reply must not be cached.
func ParseClassification(raw string) (models.Classification, error) {
	body := StripCodeFence(raw)
	if !strings.HasPrefix(body, "{") {
		body = outermostObject(body)
	}

	var reply wireReply
	if err := json.Unmarshal([]byte(body), &reply); err != nil {
		return models.Classification{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if reply.Category == nil {
		return models.Classification{}, fmt.Errorf("%w: category is missing", ErrUnknownCategory)
	}
	category, err := models.ParseCategory(*reply.Category)
	if err != nil {
		return models.Classification{}, fmt.Errorf("%w: %v", ErrUnknownCategory, err)
	}

	if !category.IsSafe() && len(reply.DangerousLines) == 0 {
		return models.Classification{}, fmt.Errorf("%w: %s", ErrMissingEvidence, category)
	}

	spots := make([]models.DangerSpot, 0, len(reply.DangerousLines))
	for i, rawSpot := range reply.DangerousLines {
		spot, err := parseSpot(rawSpot)
		if err != nil {
			return models.Classification{}, fmt.Errorf("%w: dangerous_lines[%d]: %v", ErrMalformedResponse, i, err)
		}
		spots = append(spots, spot)
	}

	return models.Classification{Category: category, DangerSpots: spots}, nil
}

func parseSpot(raw json.RawMessage) (models.DangerSpot, error) {
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	var ws wireSpot
	if err := dec.Decode(&ws); err != nil {
		return models.DangerSpot{}, err
	}
	if ws.LineNumber == nil {
		return models.DangerSpot{}, errors.New("line_number is missing")
	}
	n, err := ws.LineNumber.Int64()
	if err != nil {
		return models.DangerSpot{}, fmt.Errorf("line_number %q is not an integer", ws.LineNumber.String())
	}
	if n < 0 {
		return models.DangerSpot{}, fmt.Errorf("line_number %d is negative", n)
	}
	return models.DangerSpot{LineNumber: int(n), Code: ws.Code, Reason: ws.Reason}, nil
}

// StripCodeFence removes surrounding whitespace and a Markdown code fence,
// including an optional language tag on the opening fence.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], "{[") {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// outermostObject returns the span from the first '{' to the last '}', or s
// unchanged when there is no such span.
func outermostObject(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}

// ErrorClassification builds the synthetic result reported when a snippet
// could not be classified.
func ErrorClassification(reason error) models.Classification {
	return models.Classification{
		Category: models.CategoryAnalysisError,
		DangerSpots: []models.DangerSpot{{
			LineNumber: 0,
			Code:       "",
			Reason:     fmt.Sprintf("Не удалось проанализировать код: %v", reason),
		}},
	}
}
