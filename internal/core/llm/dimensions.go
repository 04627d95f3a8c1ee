package llm

import "fmt"

// modelDimensions maps embedding model names to their vector size.
var modelDimensions = map[string]int{
	"text-embedding-004":     768,
	"embedding-001":          768,
	"gemini-embedding-001":   3072,
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// Dimension returns the vector size produced by model. Unknown models are an
// error so storage is never sized by guesswork.
func Dimension(model string) (int, error) {
	d, ok := modelDimensions[model]
	if !ok {
		return 0, fmt.Errorf("unknown embedding model %q", model)
	}
	return d, nil
}
