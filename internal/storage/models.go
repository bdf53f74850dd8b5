package storage

import "time"

type SiteStatus string

const (
	StatusIndexing SiteStatus = "INDEXING"
	StatusIndexed  SiteStatus = "INDEXED"
	StatusFailed   SiteStatus = "FAILED"
)

type Site struct {
	ID         int64
	URL        string
	Name       string
	Status     SiteStatus
	StatusTime time.Time
	LastError  string
}

// Page is one fetched document. Content holds the raw HTML.
type Page struct {
	ID      int64
	SiteID  int64
	Path    string
	Code    int
	Content string
}

// Lemma is a base form seen on a site. Frequency is the number of distinct
// pages of that site containing it.
type Lemma struct {
	ID        int64
	SiteID    int64
	Text      string
	Frequency int
}

// IndexEntry links a page to a lemma; Weight is the lemma's occurrence
// count on that page.
type IndexEntry struct {
	ID      int64
	PageID  int64
	LemmaID int64
	Weight  float64
}

// LemmaFilter selects lemma rows by text. A zero SiteID searches every
// site and a zero MaxFrequency disables the frequency cutoff.
type LemmaFilter struct {
	Text         string
	SiteID       int64
	MaxFrequency int
}
