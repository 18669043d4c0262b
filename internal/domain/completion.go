package domain

// CompletionRequest is one prompt sent to the completion service.
type CompletionRequest struct {
	Prompt      string  `json:"prompt"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
}

// Completion is the text answer of the completion service.
type Completion struct {
	Text string `json:"text"`
}
