package seqrepo

import (
	"database/sql"
	"fmt"
	"iter"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// timestampLayout is the insertion timestamp format used by both backing
// databases.
const timestampLayout = "2006-01-02 15:04:05"

// Wildcard is the pattern marker in query filter values. A filter value
// containing it is matched with LIKE instead of exact equality.
const Wildcard = "%"

// Query restricts the records returned by [AliasDB.Find]. Nil fields are
// unconstrained. A filter value containing [Wildcard] selects pattern
// matching, otherwise the value must match exactly.
type Query struct {
	// Namespace to query within.
	Namespace *Namespace

	// Alias text or pattern.
	Alias *string

	// SeqID is a sequence id or pattern.
	SeqID *string

	// Historical includes superseded alias records. The zero value
	// restricts results to current records.
	Historical bool
}

// AliasRecord is one row of the alias database.
type AliasRecord struct {
	// SeqAliasID is the internal row id.
	SeqAliasID uint64

	// SeqID identifies the sequence the alias refers to.
	SeqID string

	// Alias is the human-assigned name.
	Alias string

	// Added is the insertion timestamp.
	Added time.Time

	// IsCurrent reports whether the record has been superseded by a newer
	// one for the same (namespace, alias) pair.
	IsCurrent bool

	// Namespace scopes the alias.
	Namespace Namespace
}

// AliasDB resolves namespaced aliases against the read-only alias
// database of a repository instance.
type AliasDB struct {
	rootDir  string
	instance string
	db       *sql.DB
	logger   *slog.Logger
}

// AliasDBOption configures an AliasDB.
type AliasDBOption func(*AliasDB)

// AliasDBWithLogger sets the logger used for query tracing.
func AliasDBWithLogger(logger *slog.Logger) AliasDBOption {
	return func(db *AliasDB) {
		db.logger = logger
	}
}

// OpenAliasDB opens the alias database of the named instance under
// rootDir read-only.
func OpenAliasDB(rootDir, instance string, opts ...AliasDBOption) (*AliasDB, error) {
	adb := &AliasDB{rootDir: rootDir, instance: instance}
	for _, opt := range opts {
		opt(adb)
	}

	db, err := openReadOnly(filepath.Join(rootDir, instance, "aliases.sqlite3"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAliasDBOpen, err)
	}
	adb.db = db
	return adb, nil
}

// openReadOnly opens a SQLite database, failing eagerly when the file is
// missing or not a database.
func openReadOnly(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", "file:"+filepath.ToSlash(path)+"?mode=ro")
	if err != nil {
		return nil, err
	}
	// sql.Open is lazy; force the connection so construction fails here
	// rather than on first query.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return db, nil
}

func (db *AliasDB) log() *slog.Logger {
	if db.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return db.logger
}

// Clone duplicates the AliasDB with its own database handle, so multiple
// goroutines can query without coordination.
func (db *AliasDB) Clone() (*AliasDB, error) {
	var opts []AliasDBOption
	if db.logger != nil {
		opts = append(opts, AliasDBWithLogger(db.logger))
	}
	return OpenAliasDB(db.rootDir, db.instance, opts...)
}

// Close releases the database handle.
func (db *AliasDB) Close() error {
	return db.db.Close()
}

// Find returns the alias records matching q, in ascending (sequence id,
// namespace, alias) order regardless of the query.
//
// The sequence is lazy. A row whose timestamp cannot be parsed yields a
// zero record together with an error wrapping [ErrAliasRecord] and
// iteration continues with subsequent rows; the consumer decides whether
// any single bad record is fatal. Statement and query failures yield an
// error wrapping [ErrAliasQuery] and end the sequence.
func (db *AliasDB) Find(q Query) iter.Seq2[AliasRecord, error] {
	return func(yield func(AliasRecord, error) bool) {
		query, params := buildAliasQuery(q)
		db.log().Debug("executing alias query", "sql", query, "params", params)

		rows, err := db.db.Query(query, params...)
		if err != nil {
			yield(AliasRecord{}, fmt.Errorf("%w: %w", ErrAliasQuery, err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var (
				rec       AliasRecord
				added     string
				isCurrent int64
				namespace string
			)
			if err := rows.Scan(&rec.SeqAliasID, &rec.SeqID, &rec.Alias, &added, &isCurrent, &namespace); err != nil {
				yield(AliasRecord{}, fmt.Errorf("%w: %w", ErrAliasQuery, err))
				return
			}
			rec.IsCurrent = isCurrent != 0
			rec.Namespace = Namespace(namespace)

			ts, err := time.Parse(timestampLayout, added)
			if err != nil {
				if !yield(AliasRecord{}, fmt.Errorf("%w: timestamp %q: %w", ErrAliasRecord, added, err)) {
					return
				}
				continue
			}
			rec.Added = ts

			if !yield(rec, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(AliasRecord{}, fmt.Errorf("%w: %w", ErrAliasQuery, err))
		}
	}
}

// buildAliasQuery assembles the SELECT statement for q. Filter values are
// passed as positional parameters, never interpolated.
func buildAliasQuery(q Query) (string, []any) {
	var (
		clauses []string
		params  []any
	)
	if q.Namespace != nil {
		clauses = append(clauses, "(namespace "+matchOp(string(*q.Namespace))+" ?)")
		params = append(params, string(*q.Namespace))
	}
	if q.Alias != nil {
		clauses = append(clauses, "(alias "+matchOp(*q.Alias)+" ?)")
		params = append(params, *q.Alias)
	}
	if q.SeqID != nil {
		clauses = append(clauses, "(seq_id "+matchOp(*q.SeqID)+" ?)")
		params = append(params, *q.SeqID)
	}
	if !q.Historical {
		clauses = append(clauses, "(is_current = 1)")
	}

	var sb strings.Builder
	sb.WriteString("SELECT seqalias_id, seq_id, alias, added, is_current, namespace FROM seqalias")
	if len(clauses) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(clauses, " AND "))
	}
	sb.WriteString(" ORDER BY seq_id, namespace, alias")
	return sb.String(), params
}

func matchOp(value string) string {
	if strings.Contains(value, Wildcard) {
		return "LIKE"
	}
	return "="
}
