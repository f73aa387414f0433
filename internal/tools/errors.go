package tools

import (
	"errors"
	"fmt"
)

var (
	// ErrScrape wraps every failure of the scrape tool
	ErrScrape = errors.New("scrape failed")

	// ErrSearch wraps every failure of the search tool
	ErrSearch = errors.New("search failed")

	// ErrHTTPStatusNotOK matches any StatusError
	ErrHTTPStatusNotOK = errors.New("unexpected HTTP status")

	// ErrRobotsDisallowed is returned when robots.txt forbids the fetch
	ErrRobotsDisallowed = errors.New("disallowed by robots.txt")

	// ErrInvalidURL is returned for anything but absolute http(s) URLs
	ErrInvalidURL = errors.New("invalid URL")
)

// StatusError reports a non-2xx response
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d %s", e.Code, e.Status)
}

// Is lets errors.Is match ErrHTTPStatusNotOK
func (e *StatusError) Is(target error) bool {
	return target == ErrHTTPStatusNotOK
}
