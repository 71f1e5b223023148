package document

import "fmt"

// MalformedDocumentError reports a structural problem with the document
// itself: the top level is not a mapping, a qualified key cannot be parsed,
// the same qualified key appears twice, or a known option carries a value of
// the wrong shape.
type MalformedDocumentError struct {
	// Key is the qualified key the problem was detected on, empty when the
	// problem concerns the document as a whole.
	Key    string
	Reason string
}

func (e *MalformedDocumentError) Error() string {
	if e.Key == "" {
		return "malformed document: " + e.Reason
	}
	return fmt.Sprintf("malformed document: key %q: %s", e.Key, e.Reason)
}
