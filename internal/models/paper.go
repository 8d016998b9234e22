package models

import "time"

// Paper is a processed paper. URL is its identity.
type Paper struct {
	URL       string    `json:"url"`
	Name      string    `json:"name"`
	Paper     string    `json:"paper"`
	Notes     []Note    `json:"notes"`
	CreatedAt time.Time `json:"createdAt"`
}

// Note is a summary of part of a paper and the pages it came from.
type Note struct {
	Note        string `json:"note"`
	PageNumbers []int  `json:"pageNumbers"`
}

// Page is the extracted text of one PDF page. Number is 1-based.
type Page struct {
	Number  int
	Content string
}

// Chunk is a fragment of a paper indexed for similarity search.
type Chunk struct {
	ID         string
	URL        string
	Content    string
	Page       int
	ChunkIndex int
	Embedding  []float32
	Metadata   map[string]interface{}
}

// QARecord is a stored question with its answer. Identity is (PaperURL, Question).
type QARecord struct {
	PaperURL          string    `json:"paperUrl"`
	Question          string    `json:"question"`
	Answer            string    `json:"answer"`
	Context           string    `json:"context"`
	FollowupQuestions []string  `json:"followupQuestions"`
	CreatedAt         time.Time `json:"createdAt"`
}

// Answer is what the model returns for a question.
type Answer struct {
	Answer            string   `json:"answer"`
	FollowupQuestions []string `json:"followupQuestions"`
}

// Download is a fetched PDF. Title is a name suggested by the landing page, if any.
type Download struct {
	URL   string
	Title string
	Data  []byte
}
