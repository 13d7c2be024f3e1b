package utils

import (
	"os"

	"github.com/google/uuid"
)

// CreateFolder creates the directory (and parents) if it does not exist yet.
func CreateFolder(folderPath string) error {
	return os.MkdirAll(folderPath, 0755)
}

// NewRunID returns a fresh identifier for a pipeline run.
func NewRunID() string {
	return uuid.NewString()
}
