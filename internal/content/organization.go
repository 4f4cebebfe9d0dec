package content

// Organization is the profile the chain builds its prompts around. It lives
// in the relational store; the chain only ever reads it.
type Organization struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Industry    string `json:"industry"`
	Tone        string `json:"tone"`
	Audience    string `json:"audience"`
	Description string `json:"description"`
}
