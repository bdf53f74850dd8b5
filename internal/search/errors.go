package search

import "errors"

var (
	ErrNoSearchTerms    = errors.New("query contains no searchable words")
	ErrSiteNotIndexed   = errors.New("site is not indexed")
	ErrNoMatchingLemmas = errors.New("no results")
	ErrNoMatchingPages  = errors.New("nothing found for this query")
)
