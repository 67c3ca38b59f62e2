package validate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nongjianweihao/share-car/internal/repository"
)

// MaxCardIDLen bounds ids accepted in request paths.
const MaxCardIDLen = 128

// CardID validates a card id taken from a request path.
func CardID(v string) error {
	if strings.TrimSpace(v) == "" {
		return fmt.Errorf("card id is required")
	}
	if len(v) > MaxCardIDLen {
		return fmt.Errorf("card id exceeds %d characters", MaxCardIDLen)
	}
	return nil
}

// SortField parses the sort query parameter. Empty means the default.
func SortField(v string) (repository.SortField, error) {
	switch f := repository.SortField(v); f {
	case "", repository.SortByTitle, repository.SortByCreatedAt, repository.SortByUpdatedAt:
		return f, nil
	}
	return "", fmt.Errorf("sort must be one of title, createdAt, updatedAt")
}

// Direction parses the dir query parameter. Empty means the default.
func Direction(v string) (repository.SortDirection, error) {
	switch d := repository.SortDirection(v); d {
	case "", repository.SortAsc, repository.SortDesc:
		return d, nil
	}
	return "", fmt.Errorf("dir must be asc or desc")
}

// Bool parses an optional boolean query parameter.
func Bool(field, v string) (bool, error) {
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean", field)
	}
	return b, nil
}

// MatchingIDs reports an error when a body id contradicts the path id.
func MatchingIDs(pathID, bodyID string) error {
	if bodyID != "" && bodyID != pathID {
		return fmt.Errorf("body id %q does not match path id %q", bodyID, pathID)
	}
	return nil
}
