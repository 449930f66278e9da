package types

// UserInput is one element of the input that starts a turn.
type UserInput struct {
	Type string `json:"type"` // "text" | "image" | "local_image"
	Text string `json:"text,omitempty"`
	URL  string `json:"url,omitempty"`
	Path string `json:"path,omitempty"`
}

// TextInput builds a plain text input element.
func TextInput(text string) UserInput {
	return UserInput{Type: "text", Text: text}
}
