package driven

// JoinPayloadRenderer turns a join payload string into an image artifact.
type JoinPayloadRenderer interface {
	Render(payload string) ([]byte, error)
	// Extension is the file extension of rendered artifacts, including the dot.
	Extension() string
}
