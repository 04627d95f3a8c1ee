package core

import "context"

// DocumentExtractor loads a stored file and returns its raw text.
type DocumentExtractor interface {
	ExtractText(ctx context.Context, path string) (string, error)
}
