package port

// Generator produces an answer from a question and retrieved context.
// It is treated as a blocking, side-effect-free external collaborator.
type Generator interface {
	// Generate answers the question using only the given context passages.
	Generate(question string, context []string) (string, error)

	// ModelName returns the name of the generation model.
	ModelName() string
}
