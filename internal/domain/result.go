package domain

import "time"

// ResultKind names the batch a ResultMessage carries.
type ResultKind string

const (
	ResultKindExtraction ResultKind = "extraction"
	ResultKindGeneration ResultKind = "generation"
)

// ResultMessage is published after a batch completes.
type ResultMessage struct {
	Kind        ResultKind         `json:"kind"`
	UserID      string             `json:"userId"`
	RequestID   string             `json:"requestId,omitempty"`
	Mode        ExtractionMode     `json:"mode,omitempty"`
	Tweets      []Tweet            `json:"tweets,omitempty"`
	Comments    []GeneratedComment `json:"comments,omitempty"`
	CompletedAt time.Time          `json:"completedAt"`
}

// ExtractionInput is one extraction call.
type ExtractionInput struct {
	Mode             ExtractionMode
	URLs             []string
	TweetsPerAccount int
	APIKey           string
}

// GenerationInput is one generation batch.
type GenerationInput struct {
	Tweets           []Tweet
	Prompt           string
	CommentsPerTweet int
	APIKey           string
}
