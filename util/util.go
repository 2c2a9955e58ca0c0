package util

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
)

// ErrResponse is the shape of an error returned to an HTTP caller.
type ErrResponse struct {
	Error string `json:"error"`
}

// ErrorResponse writes a JSON error body with the given status code.
func ErrorResponse(c *gin.Context, statusCode int, err error) {
	c.JSON(statusCode, ErrResponse{Error: err.Error()})
}

// FindFile walks up to maxDepth parent directories looking for name, returning the first match.
func FindFile(name string, maxDepth int) (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for i := 0; i <= maxDepth; i++ {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("could not find %s within %d parent directories", name, maxDepth)
}
