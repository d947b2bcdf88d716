package model

// Question is a single multiple-choice question as stored in a test section.
// ID is the bank-stable identifier used for grading; presentation identifiers
// are assigned per session by the question set builder.
type Question struct {
	ID       int            `json:"id"`
	Text     string         `json:"text"`
	Resource string         `json:"resource,omitempty"`
	Options  []AnswerOption `json:"options"`
}

// AnswerOption is one selectable option for a question. Solution is the
// explanation attached to the correct option in the answer key; it is empty
// on participant-facing options.
type AnswerOption struct {
	ID       int    `json:"id" binding:"required"`
	Option   string `json:"option" binding:"required"`
	Solution string `json:"solution,omitempty"`
}
