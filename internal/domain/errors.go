package domain

import (
	"errors"
	"fmt"
	"net/url"
)

var (
	// ErrMissingInput indicates a required argument was absent or blank.
	ErrMissingInput = errors.New("missing required input")
	// ErrInvalidInput indicates an argument was present but malformed.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDuplicateBarcode indicates an entry with the barcode already exists.
	ErrDuplicateBarcode = errors.New("an entry with this barcode already exists")
	// ErrProductNotFound indicates the barcode service returned no items.
	ErrProductNotFound = errors.New("product not found for barcode")
	// ErrTitleNotFound indicates the matched product carries no usable title.
	ErrTitleNotFound = errors.New("product title not found")
	// ErrTitleTooShort indicates the normalized title cannot be searched.
	ErrTitleTooShort = errors.New("cleaned title is too short to search")
	// ErrNoMatchFound indicates the metadata search returned no results.
	ErrNoMatchFound = errors.New("no movie matched the product title")
	// ErrNotFound indicates the requested catalog entry does not exist.
	ErrNotFound = errors.New("catalog entry not found")
	// ErrStorage wraps unexpected persistence failures.
	ErrStorage = errors.New("storage failure")
)

// ErrDuplicateTitle is reported when the title-uniqueness policy rejects an
// entry. It matches ErrDuplicateBarcode under errors.Is so callers treating
// every uniqueness conflict alike need a single check.
var ErrDuplicateTitle error = duplicateTitleError{}

type duplicateTitleError struct{}

func (duplicateTitleError) Error() string { return "an entry with this title already exists" }

func (duplicateTitleError) Is(target error) bool { return target == ErrDuplicateBarcode }

// ExternalServiceError reports a failure talking to a third-party service.
// Status is zero when no HTTP response was received.
type ExternalServiceError struct {
	Service string
	Status  int
	Detail  string
}

func (e *ExternalServiceError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: upstream returned %d: %s", e.Service, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Service, e.Detail)
}

// TransportFailure converts an http.Client error into an ExternalServiceError.
// The request URL is dropped from the detail since it may carry credentials.
func TransportFailure(service string, err error) *ExternalServiceError {
	detail := err.Error()
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		detail = urlErr.Err.Error()
	}
	return &ExternalServiceError{Service: service, Detail: detail}
}
