package storage

const Schema = `
-- Sites: one row per configured seed
CREATE TABLE IF NOT EXISTS sites (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    url TEXT UNIQUE NOT NULL,
    name TEXT NOT NULL,
    status TEXT NOT NULL CHECK (status IN ('INDEXING', 'INDEXED', 'FAILED')),
    status_time DATETIME NOT NULL,
    last_error TEXT NOT NULL DEFAULT ''
);

-- Pages: fetched documents, path is relative to the site root
CREATE TABLE IF NOT EXISTS pages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    site_id INTEGER NOT NULL,
    path TEXT NOT NULL,
    code INTEGER NOT NULL,
    content TEXT NOT NULL,
    UNIQUE (site_id, path),
    FOREIGN KEY (site_id) REFERENCES sites(id)
);

-- Lemmas: per-site dictionary, frequency is document frequency
CREATE TABLE IF NOT EXISTS lemmas (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    site_id INTEGER NOT NULL,
    lemma TEXT NOT NULL,
    frequency INTEGER NOT NULL DEFAULT 0,
    UNIQUE (site_id, lemma),
    FOREIGN KEY (site_id) REFERENCES sites(id)
);
CREATE INDEX IF NOT EXISTS idx_lemmas_lemma ON lemmas(lemma, frequency);

-- Postings: inverted index, weight is the lemma count on the page
CREATE TABLE IF NOT EXISTS postings (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    page_id INTEGER NOT NULL,
    lemma_id INTEGER NOT NULL,
    weight REAL NOT NULL CHECK (weight >= 0),
    UNIQUE (page_id, lemma_id),
    FOREIGN KEY (page_id) REFERENCES pages(id),
    FOREIGN KEY (lemma_id) REFERENCES lemmas(id)
);
CREATE INDEX IF NOT EXISTS idx_postings_lemma ON postings(lemma_id);
`
