// Package extraction turns a stored meter photo into a numeric reading.
// The Extractor submits the image to an external generative model and
// returns its raw text; a ValueParser then pulls the reading out of that
// text. Both are interfaces so either side can be replaced independently,
// e.g. swapping the regex parser for a structured-output contract.
package extraction

import "context"

// Extractor submits an image and a prompt to a generative model and returns
// the model's textual response verbatim. An empty string with a nil error
// means the model answered without any text content.
type Extractor interface {
	Extract(ctx context.Context, image []byte, mimeType, prompt string) (string, error)
}
