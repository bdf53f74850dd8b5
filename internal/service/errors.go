package service

import "errors"

var (
	ErrAlreadyRunning = errors.New("indexing is already running")
	ErrNotRunning     = errors.New("indexing is not running")
	ErrMalformedURL   = errors.New("malformed url")
	ErrOutOfScopeURL  = errors.New("this page is outside the sites listed in the configuration")
	ErrFetchFailed    = errors.New("page could not be fetched")
)

// StoppedByUser is the last error of every site that was still being
// crawled when indexing was stopped.
const StoppedByUser = "indexing stopped by user"
