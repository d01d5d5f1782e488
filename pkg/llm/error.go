package llm

// ErrorResponse is the JSON error body returned by the HTTP API.
type ErrorResponse struct {
	Error string `json:"error"`

	// Node is the workflow node that failed, when known.
	Node string `json:"node,omitempty"`

	// Source is the capability that failed, when known.
	Source string `json:"source,omitempty"`
}
