package meta

import (
	"database/sql"
	"strings"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/vsearchio/vsearch/cmn"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS collections (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	uid TEXT NOT NULL,
	uuid TEXT NOT NULL UNIQUE,
	revision INTEGER NOT NULL,
	current INTEGER NOT NULL,
	status INTEGER NOT NULL,
	readable INTEGER NOT NULL,
	writable INTEGER NOT NULL,
	max_docs_per_segment INTEGER NOT NULL,
	forward_columns TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_collections_name ON collections(name);
CREATE INDEX IF NOT EXISTS idx_collections_uid ON collections(uid);

CREATE TABLE IF NOT EXISTS columns (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	collection_uuid TEXT NOT NULL,
	column_uid TEXT NOT NULL,
	column_name TEXT NOT NULL,
	ordinal INTEGER NOT NULL,
	index_type INTEGER NOT NULL,
	data_type INTEGER NOT NULL,
	dimension INTEGER NOT NULL,
	parameters TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_columns_collection_uuid ON columns(collection_uuid);

CREATE TABLE IF NOT EXISTS repositories (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	collection_uuid TEXT NOT NULL,
	name TEXT NOT NULL,
	connection_uri TEXT NOT NULL,
	user TEXT NOT NULL,
	password TEXT NOT NULL,
	table_name TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_repositories_collection_uuid ON repositories(collection_uuid);
`

// sqliteStore is the modernc.org/sqlite-backed Store, a pure-Go driver so
// the whole module stays cgo-free. WAL mode lets read paths (describe,
// list) proceed without blocking the single writer the meta subsystem's
// lock discipline already assumes.
type sqliteStore struct {
	db *sql.DB
}

func newSQLiteStore(uri string) (Store, error) {
	const prefix = "sqlite://"
	if !strings.HasPrefix(uri, prefix) {
		return nil, cmn.NewError(cmn.CodeUnsupportedConnection, "unsupported meta store scheme in %q", uri)
	}
	path := strings.TrimPrefix(uri, prefix)
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, cmn.NewError(cmn.CodeOpenFile, "open sqlite meta store %q: %v", path, err)
	}
	db.SetMaxOpenConns(1) // single-writer discipline per §4.1

	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, cmn.NewError(cmn.CodeOpenFile, "create meta schema: %v", err)
	}
	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) CreateCollection(c *Collection) error {
	_, err := s.db.Exec(
		`INSERT INTO collections
			(name, uid, uuid, revision, current, status, readable, writable, max_docs_per_segment, forward_columns)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Name, c.UID, c.UUID, c.Revision, boolToInt(c.Current), int(c.Status),
		boolToInt(c.Readable), boolToInt(c.Writable), c.MaxDocsPerSegment, strings.Join(c.ForwardColumns, ","),
	)
	if err != nil {
		return errors.Wrap(err, "insert collection")
	}
	if err := s.CreateColumns(c.UUID, c.IndexColumns); err != nil {
		return err
	}
	if c.Repository != nil {
		if err := s.CreateRepository(c.UUID, c.Repository); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqliteStore) UpdateCollection(c *Collection) error {
	// Rows are keyed by uuid: a new revision has no rows yet and is simply
	// inserted; an existing revision (enable, demote, status or flag flips)
	// has its old rows replaced.
	if err := s.DeleteCollectionByUUID(c.UUID); err != nil {
		return err
	}
	return s.CreateCollection(c)
}

func (s *sqliteStore) DeleteCollectionByName(name string) error {
	rows, err := s.db.Query(`SELECT uuid FROM collections WHERE name = ?`, name)
	if err != nil {
		return errors.Wrap(err, "select collection uuids by name")
	}
	var uuids []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			rows.Close()
			return errors.Wrap(err, "scan collection uuid")
		}
		uuids = append(uuids, u)
	}
	rows.Close()

	if _, err := s.db.Exec(`DELETE FROM collections WHERE name = ?`, name); err != nil {
		return errors.Wrap(err, "delete collections by name")
	}
	for _, u := range uuids {
		if err := s.DeleteColumnsByUUID(u); err != nil {
			return err
		}
		if err := s.DeleteRepositoriesByUUID(u); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqliteStore) DeleteCollectionByUUID(uu string) error {
	if _, err := s.db.Exec(`DELETE FROM collections WHERE uuid = ?`, uu); err != nil {
		return errors.Wrap(err, "delete collection by uuid")
	}
	if err := s.DeleteColumnsByUUID(uu); err != nil {
		return err
	}
	return s.DeleteRepositoriesByUUID(uu)
}

func (s *sqliteStore) ListCollections() ([]*Collection, error) {
	rows, err := s.db.Query(
		`SELECT name, uid, uuid, revision, current, status, readable, writable, max_docs_per_segment, forward_columns
		 FROM collections`)
	if err != nil {
		return nil, errors.Wrap(err, "list collections")
	}
	defer rows.Close()

	var out []*Collection
	for rows.Next() {
		c := &Collection{}
		var status int
		var current, readable, writable int
		var forward string
		if err := rows.Scan(&c.Name, &c.UID, &c.UUID, &c.Revision, &current, &status,
			&readable, &writable, &c.MaxDocsPerSegment, &forward); err != nil {
			return nil, errors.Wrap(err, "scan collection row")
		}
		c.Current = current != 0
		c.Status = cmn.CollectionStatus(status)
		c.Readable = readable != 0
		c.Writable = writable != 0
		if forward != "" {
			c.ForwardColumns = strings.Split(forward, ",")
		}
		cols, err := s.listColumns(c.UUID)
		if err != nil {
			return nil, err
		}
		c.IndexColumns = cols
		repo, err := s.findRepository(c.UUID)
		if err != nil {
			return nil, err
		}
		c.Repository = repo
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *sqliteStore) CreateColumns(collectionUUID string, cols []IndexColumn) error {
	for i, ic := range cols {
		_, err := s.db.Exec(
			`INSERT INTO columns
				(collection_uuid, column_uid, column_name, ordinal, index_type, data_type, dimension, parameters)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			collectionUUID, ic.ColumnUID, ic.ColumnName, i, int(ic.IndexType), int(ic.DataType), ic.Dimension,
			encodeParameters(ic.Parameters),
		)
		if err != nil {
			return errors.Wrap(err, "insert column")
		}
	}
	return nil
}

func (s *sqliteStore) DeleteColumnsByUID(uid string) error {
	// columns are keyed by collection_uuid, not uid; this deletes the
	// columns of every revision sharing uid. Retained to satisfy the Store
	// contract; nothing in this module calls it (drop_collection removes by
	// name at the cache layer and by uuid at this layer).
	_, err := s.db.Exec(
		`DELETE FROM columns WHERE collection_uuid IN (SELECT uuid FROM collections WHERE uid = ?)`, uid)
	if err != nil {
		return errors.Wrap(err, "delete columns by uid")
	}
	return nil
}

func (s *sqliteStore) DeleteColumnsByUUID(uu string) error {
	_, err := s.db.Exec(`DELETE FROM columns WHERE collection_uuid = ?`, uu)
	return errors.Wrap(err, "delete columns by uuid")
}

func (s *sqliteStore) listColumns(collectionUUID string) ([]IndexColumn, error) {
	rows, err := s.db.Query(
		`SELECT column_uid, column_name, index_type, data_type, dimension, parameters
		 FROM columns WHERE collection_uuid = ? ORDER BY ordinal ASC`, collectionUUID)
	if err != nil {
		return nil, errors.Wrap(err, "list columns")
	}
	defer rows.Close()

	var out []IndexColumn
	for rows.Next() {
		var ic IndexColumn
		var indexType, dataType int
		var params string
		if err := rows.Scan(&ic.ColumnUID, &ic.ColumnName, &indexType, &dataType, &ic.Dimension, &params); err != nil {
			return nil, errors.Wrap(err, "scan column row")
		}
		ic.IndexType = cmn.IndexType(indexType)
		ic.DataType = cmn.DataType(dataType)
		ic.Parameters = decodeParameters(params)
		out = append(out, ic)
	}
	return out, rows.Err()
}

func (s *sqliteStore) CreateRepository(collectionUUID string, r *Repository) error {
	_, err := s.db.Exec(
		`INSERT INTO repositories (collection_uuid, name, connection_uri, user, password, table_name)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		collectionUUID, r.Name, r.ConnectionURI, r.User, r.Password, r.TableName,
	)
	return errors.Wrap(err, "insert repository")
}

func (s *sqliteStore) DeleteRepositoriesByUID(uid string) error {
	_, err := s.db.Exec(
		`DELETE FROM repositories WHERE collection_uuid IN (SELECT uuid FROM collections WHERE uid = ?)`, uid)
	return errors.Wrap(err, "delete repositories by uid")
}

func (s *sqliteStore) DeleteRepositoriesByUUID(uu string) error {
	_, err := s.db.Exec(`DELETE FROM repositories WHERE collection_uuid = ?`, uu)
	return errors.Wrap(err, "delete repositories by uuid")
}

func (s *sqliteStore) findRepository(collectionUUID string) (*Repository, error) {
	row := s.db.QueryRow(
		`SELECT name, connection_uri, user, password, table_name FROM repositories WHERE collection_uuid = ?`,
		collectionUUID)
	r := &Repository{}
	err := row.Scan(&r.Name, &r.ConnectionURI, &r.User, &r.Password, &r.TableName)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan repository row")
	}
	return r, nil
}

func (s *sqliteStore) Flush() error {
	_, err := s.db.Exec(`PRAGMA wal_checkpoint(TRUNCATE)`)
	return errors.Wrap(err, "flush meta store")
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func encodeParameters(m map[string]string) string {
	if len(m) == 0 {
		return ""
	}
	var b strings.Builder
	first := true
	for k, v := range m {
		if !first {
			b.WriteByte(';')
		}
		first = false
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(v)
	}
	return b.String()
}

func decodeParameters(s string) map[string]string {
	if s == "" {
		return nil
	}
	m := map[string]string{}
	for _, kv := range strings.Split(s, ";") {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			continue
		}
		m[parts[0]] = parts[1]
	}
	return m
}
