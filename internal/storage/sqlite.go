package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Large IN lists are split so a single statement stays under SQLite's
// host parameter limit.
const inChunkSize = 500

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the index at dbPath. ":memory:" gives a
// private in-memory index.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	memory := dbPath == ":memory:"

	dsn := "file:" + dbPath + "?_foreign_keys=on&_busy_timeout=5000"
	if memory {
		dsn = ":memory:?_foreign_keys=on"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: writes serialize and an in-memory database is shared
	// by every caller.
	db.SetMaxOpenConns(1)

	if !memory {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable WAL: %w", err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertSite(ctx context.Context, site *Site) error {
	if site.StatusTime.IsZero() {
		site.StatusTime = time.Now()
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO sites (url, name, status, status_time, last_error)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			name = excluded.name,
			status = excluded.status,
			status_time = excluded.status_time,
			last_error = excluded.last_error
		RETURNING id
	`, site.URL, site.Name, string(site.Status), site.StatusTime, site.LastError).Scan(&site.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert site %s: %w", site.URL, err)
	}
	return nil
}

const siteColumns = "id, url, name, status, status_time, last_error"

func scanSite(row interface{ Scan(...any) error }) (*Site, error) {
	var site Site
	var status string
	if err := row.Scan(&site.ID, &site.URL, &site.Name, &status, &site.StatusTime, &site.LastError); err != nil {
		return nil, err
	}
	site.Status = SiteStatus(status)
	return &site, nil
}

func (s *SQLiteStore) FindSiteByURL(ctx context.Context, url string) (*Site, error) {
	site, err := scanSite(s.db.QueryRowContext(ctx,
		"SELECT "+siteColumns+" FROM sites WHERE url = ?", url))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find site %s: %w", url, err)
	}
	return site, nil
}

func (s *SQLiteStore) ListSites(ctx context.Context) ([]Site, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+siteColumns+" FROM sites ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	defer rows.Close()

	var sites []Site
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, err
		}
		sites = append(sites, *site)
	}
	return sites, rows.Err()
}

func (s *SQLiteStore) UpdateSiteStatus(ctx context.Context, siteID int64, status SiteStatus, lastError string, at time.Time) error {
	return s.updateSite(ctx,
		"UPDATE sites SET status = ?, last_error = ?, status_time = ? WHERE id = ?",
		string(status), lastError, at, siteID)
}

func (s *SQLiteStore) SetSiteError(ctx context.Context, siteID int64, lastError string, at time.Time) error {
	return s.updateSite(ctx,
		"UPDATE sites SET last_error = ?, status_time = ? WHERE id = ?",
		lastError, at, siteID)
}

func (s *SQLiteStore) TouchSite(ctx context.Context, siteID int64, at time.Time) error {
	return s.updateSite(ctx, "UPDATE sites SET status_time = ? WHERE id = ?", at, siteID)
}

func (s *SQLiteStore) updateSite(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update site: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) FailIndexingSites(ctx context.Context, lastError string, at time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE sites SET status = ?, last_error = ?, status_time = ? WHERE status = ?",
		string(StatusFailed), lastError, at, string(StatusIndexing))
	if err != nil {
		return 0, fmt.Errorf("failed to fail indexing sites: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) DeleteSiteByURL(ctx context.Context, url string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var siteID int64
	err = tx.QueryRowContext(ctx, "SELECT id FROM sites WHERE url = ?", url).Scan(&siteID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to find site %s: %w", url, err)
	}

	steps := []string{
		"DELETE FROM postings WHERE page_id IN (SELECT id FROM pages WHERE site_id = ?)",
		"DELETE FROM pages WHERE site_id = ?",
		"DELETE FROM lemmas WHERE site_id = ?",
		"DELETE FROM sites WHERE id = ?",
	}
	for _, query := range steps {
		if _, err := tx.ExecContext(ctx, query, siteID); err != nil {
			return fmt.Errorf("failed to delete site %s: %w", url, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) UpsertPage(ctx context.Context, page *Page) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO pages (site_id, path, code, content)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(site_id, path) DO UPDATE SET
			code = excluded.code,
			content = excluded.content
		RETURNING id
	`, page.SiteID, page.Path, page.Code, page.Content).Scan(&page.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert page %s: %w", page.Path, err)
	}
	return nil
}

func (s *SQLiteStore) FindPageByPath(ctx context.Context, siteID int64, path string) (*Page, error) {
	var page Page
	err := s.db.QueryRowContext(ctx,
		"SELECT id, site_id, path, code, content FROM pages WHERE site_id = ? AND path = ?",
		siteID, path,
	).Scan(&page.ID, &page.SiteID, &page.Path, &page.Code, &page.Content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find page %s: %w", path, err)
	}
	return &page, nil
}

func (s *SQLiteStore) FindPagesByIDs(ctx context.Context, ids []int64) ([]Page, error) {
	var pages []Page
	for _, chunk := range chunks(ids) {
		rows, err := s.db.QueryContext(ctx,
			"SELECT id, site_id, path, code, content FROM pages WHERE id IN ("+placeholders(len(chunk))+")",
			int64Args(chunk)...)
		if err != nil {
			return nil, fmt.Errorf("failed to find pages: %w", err)
		}
		for rows.Next() {
			var page Page
			if err := rows.Scan(&page.ID, &page.SiteID, &page.Path, &page.Code, &page.Content); err != nil {
				rows.Close()
				return nil, err
			}
			pages = append(pages, page)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return pages, nil
}

func (s *SQLiteStore) ReplacePageIndex(ctx context.Context, siteID, pageID int64, counts map[string]int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := replacePostings(ctx, tx, siteID, pageID, counts); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) ReplacePage(ctx context.Context, page *Page, counts map[string]int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO pages (site_id, path, code, content)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(site_id, path) DO UPDATE SET
			code = excluded.code,
			content = excluded.content
		RETURNING id
	`, page.SiteID, page.Path, page.Code, page.Content).Scan(&page.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert page %s: %w", page.Path, err)
	}

	if err := replacePostings(ctx, tx, page.SiteID, page.ID, counts); err != nil {
		return err
	}
	return tx.Commit()
}

func replacePostings(ctx context.Context, tx *sql.Tx, siteID, pageID int64, counts map[string]int) error {
	// Retract the previous version of the page first so frequency stays a
	// count of distinct pages.
	if _, err := tx.ExecContext(ctx, `
		UPDATE lemmas SET frequency = frequency - 1
		WHERE id IN (SELECT lemma_id FROM postings WHERE page_id = ?)
	`, pageID); err != nil {
		return fmt.Errorf("failed to retract lemmas of page %d: %w", pageID, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM postings WHERE page_id = ?", pageID); err != nil {
		return fmt.Errorf("failed to delete postings of page %d: %w", pageID, err)
	}

	lemmaStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO lemmas (site_id, lemma, frequency) VALUES (?, ?, 1)
		ON CONFLICT(site_id, lemma) DO UPDATE SET frequency = frequency + 1
		RETURNING id
	`)
	if err != nil {
		return err
	}
	defer lemmaStmt.Close()

	postingStmt, err := tx.PrepareContext(ctx,
		"INSERT INTO postings (page_id, lemma_id, weight) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer postingStmt.Close()

	lemmas := make([]string, 0, len(counts))
	for lemma := range counts {
		lemmas = append(lemmas, lemma)
	}
	sort.Strings(lemmas)

	for _, lemma := range lemmas {
		var lemmaID int64
		if err := lemmaStmt.QueryRowContext(ctx, siteID, lemma).Scan(&lemmaID); err != nil {
			return fmt.Errorf("failed to upsert lemma %q: %w", lemma, err)
		}
		if _, err := postingStmt.ExecContext(ctx, pageID, lemmaID, float64(counts[lemma])); err != nil {
			return fmt.Errorf("failed to save posting for %q: %w", lemma, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM lemmas WHERE site_id = ? AND frequency <= 0", siteID); err != nil {
		return fmt.Errorf("failed to prune lemmas: %w", err)
	}
	return nil
}

func (s *SQLiteStore) FindLemmas(ctx context.Context, filter LemmaFilter) ([]Lemma, error) {
	query := "SELECT id, site_id, lemma, frequency FROM lemmas WHERE lemma = ?"
	args := []any{filter.Text}
	if filter.SiteID != 0 {
		query += " AND site_id = ?"
		args = append(args, filter.SiteID)
	}
	if filter.MaxFrequency > 0 {
		query += " AND frequency <= ?"
		args = append(args, filter.MaxFrequency)
	}
	query += " ORDER BY frequency, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find lemma %q: %w", filter.Text, err)
	}
	defer rows.Close()

	var lemmas []Lemma
	for rows.Next() {
		var l Lemma
		if err := rows.Scan(&l.ID, &l.SiteID, &l.Text, &l.Frequency); err != nil {
			return nil, err
		}
		lemmas = append(lemmas, l)
	}
	return lemmas, rows.Err()
}

func (s *SQLiteStore) FindPageIDsByLemma(ctx context.Context, lemmaID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT page_id FROM postings WHERE lemma_id = ? ORDER BY page_id", lemmaID)
	if err != nil {
		return nil, fmt.Errorf("failed to find pages for lemma %d: %w", lemmaID, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) FindIndexEntries(ctx context.Context, pageIDs, lemmaIDs []int64) ([]IndexEntry, error) {
	if len(pageIDs) == 0 || len(lemmaIDs) == 0 {
		return nil, nil
	}

	var entries []IndexEntry
	for _, lemmaChunk := range chunks(lemmaIDs) {
		for _, pageChunk := range chunks(pageIDs) {
			query := "SELECT id, page_id, lemma_id, weight FROM postings WHERE page_id IN (" +
				placeholders(len(pageChunk)) + ") AND lemma_id IN (" + placeholders(len(lemmaChunk)) + ")"
			args := append(int64Args(pageChunk), int64Args(lemmaChunk)...)

			found, err := queryEntries(ctx, s.db, query, args)
			if err != nil {
				return nil, fmt.Errorf("failed to find index entries: %w", err)
			}
			entries = append(entries, found...)
		}
	}
	return entries, nil
}

func queryEntries(ctx context.Context, q querier, query string, args []any) ([]IndexEntry, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []IndexEntry
	for rows.Next() {
		var e IndexEntry
		if err := rows.Scan(&e.ID, &e.PageID, &e.LemmaID, &e.Weight); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) CountPages(ctx context.Context, siteID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pages WHERE site_id = ?", siteID).Scan(&count)
	return count, err
}

func (s *SQLiteStore) CountLemmas(ctx context.Context, siteID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM lemmas WHERE site_id = ?", siteID).Scan(&count)
	return count, err
}

func chunks(ids []int64) [][]int64 {
	var out [][]int64
	for len(ids) > inChunkSize {
		out = append(out, ids[:inChunkSize])
		ids = ids[inChunkSize:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
