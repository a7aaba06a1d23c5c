package object

// NewBlob wraps raw file content as a blob object. Blob payloads are
// opaque; no parsing or validation is performed.
func NewBlob(content []byte) *Object {
	return New(TypeBlob, content)
}
