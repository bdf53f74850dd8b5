package service

import (
	"context"
	"fmt"
)

type Statistics struct {
	Total    TotalStatistics  `json:"total"`
	Detailed []SiteStatistics `json:"detailed"`
}

type TotalStatistics struct {
	Sites    int  `json:"sites"`
	Pages    int  `json:"pages"`
	Lemmas   int  `json:"lemmas"`
	Indexing bool `json:"indexing"`
}

type SiteStatistics struct {
	URL    string `json:"url"`
	Name   string `json:"name"`
	Status string `json:"status"`
	// StatusTime is in milliseconds since the epoch.
	StatusTime int64  `json:"statusTime"`
	Error      string `json:"error,omitempty"`
	Pages      int    `json:"pages"`
	Lemmas     int    `json:"lemmas"`
}

// Statistics reports totals and per-site counts over every stored site.
func (s *Service) Statistics(ctx context.Context) (*Statistics, error) {
	sites, err := s.store.ListSites(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Statistics{
		Total:    TotalStatistics{Sites: len(sites), Indexing: s.Running()},
		Detailed: make([]SiteStatistics, 0, len(sites)),
	}

	for _, site := range sites {
		pages, err := s.store.CountPages(ctx, site.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to count pages of %s: %w", site.URL, err)
		}
		lemmas, err := s.store.CountLemmas(ctx, site.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to count lemmas of %s: %w", site.URL, err)
		}

		stats.Total.Pages += pages
		stats.Total.Lemmas += lemmas
		stats.Detailed = append(stats.Detailed, SiteStatistics{
			URL:        site.URL,
			Name:       site.Name,
			Status:     string(site.Status),
			StatusTime: site.StatusTime.UnixMilli(),
			Error:      site.LastError,
			Pages:      pages,
			Lemmas:     lemmas,
		})
	}

	return stats, nil
}
