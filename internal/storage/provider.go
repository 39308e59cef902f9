// Package storage defines the project file-system abstraction the tree is read from.
package storage

import "github.com/starford/doorlink/internal/models"

// Provider is the interface for project file operations.
type Provider interface {
	// Root returns the absolute project root.
	Root() string
	// Abs resolves a root-relative path to an absolute one.
	Abs(path string) (string, error)
	// List returns metadata for every .yml file under dir (relative to root).
	List(dir string) ([]models.FileMetadata, error)
	// Read returns the raw bytes of the file at path (relative to root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to root).
	Write(path string, content []byte) error
}
