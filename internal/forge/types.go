// Package forge publishes generated applications to an external repository
// provider through its REST API and derives public serving URLs.
package forge

// RepoHandle exposes exactly the provider repository fields this system
// uses, decoupling callers from the provider's full object shape.
type RepoHandle struct {
	Name          string
	HTMLURL       string
	DefaultBranch string
}

// FileContent is a file body destined for a repository. Binary marks
// payloads that must never be interpreted as text; the transport encoding
// is decided by the adapter, not the caller.
type FileContent struct {
	Data   []byte
	Binary bool
}

// Text wraps a string as text file content.
func Text(s string) FileContent { return FileContent{Data: []byte(s)} }

// Bytes wraps raw bytes as binary file content.
func Bytes(b []byte) FileContent { return FileContent{Data: b, Binary: true} }

// File pairs a repository path with its content. Slices of File keep the
// commit ordering deterministic.
type File struct {
	Path    string
	Content FileContent
}
