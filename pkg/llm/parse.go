package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/xhad/paperqa/internal/models"
)

// ErrMalformedResponse is returned when the model output cannot be decoded.
var ErrMalformedResponse = errors.New("malformed model response")

// extractJSON returns the JSON payload of a model reply. A fenced block wins;
// otherwise the first bracket that opens a JSON object, or an array of
// objects, is taken. Brackets in surrounding prose are skipped.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if fenced, ok := fencedBlock(s); ok {
		s = fenced
	}

	for i := 0; i < len(s); i++ {
		if s[i] != '{' && s[i] != '[' {
			continue
		}
		var raw json.RawMessage
		if err := json.NewDecoder(strings.NewReader(s[i:])).Decode(&raw); err != nil {
			continue
		}
		if isPayload(raw) {
			return string(raw)
		}
	}
	return s
}

func fencedBlock(s string) (string, bool) {
	open := strings.Index(s, "```")
	if open < 0 {
		return "", false
	}
	body := s[open+3:]
	// drop the language tag line
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && !strings.ContainsAny(body[:nl], "{[") {
		body = body[nl+1:]
	}
	closing := strings.Index(body, "```")
	if closing < 0 {
		return "", false
	}
	return strings.TrimSpace(body[:closing]), true
}

func isPayload(raw json.RawMessage) bool {
	if raw[0] == '{' {
		return true
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return false
	}
	for _, item := range items {
		if len(item) == 0 || item[0] != '{' {
			return false
		}
	}
	return true
}

func parseNotes(content string) ([]models.Note, error) {
	raw := []byte(extractJSON(content))

	var wrapped struct {
		Notes []models.Note `json:"notes"`
	}
	var notes []models.Note

	if len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &notes); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
	} else {
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		notes = wrapped.Notes
	}

	notes = mergeNotes(notes)
	if len(notes) == 0 {
		return nil, fmt.Errorf("%w: no notes returned", ErrMalformedResponse)
	}
	return notes, nil
}

// mergeNotes drops empty notes and folds duplicates together, unioning
// their page numbers.
func mergeNotes(notes []models.Note) []models.Note {
	index := make(map[string]int, len(notes))
	merged := make([]models.Note, 0, len(notes))

	for _, note := range notes {
		text := strings.TrimSpace(note.Note)
		if text == "" {
			continue
		}
		i, seen := index[text]
		if !seen {
			i = len(merged)
			index[text] = i
			merged = append(merged, models.Note{Note: text})
		}
		merged[i].PageNumbers = append(merged[i].PageNumbers, note.PageNumbers...)
	}

	for i := range merged {
		merged[i].PageNumbers = uniquePages(merged[i].PageNumbers)
	}
	return merged
}

func uniquePages(pages []int) []int {
	seen := make(map[int]bool, len(pages))
	out := make([]int, 0, len(pages))
	for _, p := range pages {
		if p > 0 && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	sort.Ints(out)
	return out
}

func parseAnswer(content string) (*models.Answer, error) {
	var answer models.Answer
	if err := json.Unmarshal([]byte(extractJSON(content)), &answer); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	answer.Answer = strings.TrimSpace(answer.Answer)
	if answer.Answer == "" {
		return nil, fmt.Errorf("%w: empty answer", ErrMalformedResponse)
	}

	questions := make([]string, 0, len(answer.FollowupQuestions))
	for _, q := range answer.FollowupQuestions {
		if q = strings.TrimSpace(q); q != "" {
			questions = append(questions, q)
		}
	}
	answer.FollowupQuestions = questions

	return &answer, nil
}
