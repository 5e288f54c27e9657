package imgcap

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tailscale/squibble"
	_ "modernc.org/sqlite"
)

//go:embed db/latest_schema.sql
var dbSchema string

var schema = &squibble.Schema{
	Current: dbSchema,
}

// DB records the captions produced by each run. It is write-mostly, nothing
// in a run consults earlier runs.
type DB struct {
	mu sync.Mutex
	db *sql.DB

	filepath string
}

type Run struct {
	Id         uuid.UUID
	Describer  string
	Model      string
	Total      int
	StartedAt  time.Time
	FinishedAt sql.NullTime
}

type CaptionRecord struct {
	Id          int
	RunId       uuid.UUID
	Position    int // index of the path in the run's work list
	Path        string
	Caption     string
	Failed      bool
	ProcessedAt time.Time
}

func (db *DB) Close() {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.db.Close()
}

func NewDB(ctx context.Context, fname string) (*DB, error) {
	// Open the DB but flip on the cleaner timestamps from Go
	sqldb, err := sql.Open("sqlite", fname+"?_time_format=sqlite")
	if err != nil {
		return nil, err
	}
	// Every connection to :memory: is a separate database
	sqldb.SetMaxOpenConns(1)

	if err := sqldb.PingContext(ctx); err != nil {
		sqldb.Close()
		return nil, err
	}
	if err := schema.Apply(ctx, sqldb); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &DB{db: sqldb, filepath: fname}, nil
}

// CreateRun inserts a new run row with a fresh id.
func (db *DB) CreateRun(ctx context.Context, describer, model string, total int, at time.Time) (*Run, error) {
	run := &Run{
		Id:        uuid.New(),
		Describer: describer,
		Model:     model,
		Total:     total,
		StartedAt: at,
	}

	_, err := db.db.ExecContext(ctx, `
		INSERT INTO runs (id, describer, model, total, started_at)
		VALUES (?,?,?,?,?)`,
		run.Id.String(), run.Describer, run.Model, run.Total, run.StartedAt)
	if err != nil {
		return nil, err
	}

	return run, nil
}

// FinishRun sets the finished_at timestamp of a run.
func (db *DB) FinishRun(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := db.db.ExecContext(ctx, "UPDATE runs SET finished_at=$1 WHERE id=$2", at, id.String())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("run %s not found", id)
	}

	return nil
}

// GetRun retrieves the run with the given id.
func (db *DB) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	row := db.db.QueryRowContext(ctx, `
		SELECT id, describer, model, total, started_at, finished_at
		FROM runs
		WHERE id=?`, id.String())

	run := &Run{}
	var rid string
	err := row.Scan(&rid, &run.Describer, &run.Model, &run.Total, &run.StartedAt, &run.FinishedAt)
	if err != nil {
		return nil, err
	}
	if run.Id, err = uuid.Parse(rid); err != nil {
		return nil, err
	}

	return run, nil
}

// InsertCaptions stores the records for a run, batchSize rows per INSERT
// statement, in a single transaction. It returns the number of rows added.
func (db *DB) InsertCaptions(ctx context.Context, runID uuid.UUID, recs []CaptionRecord, batchSize int) (int, error) {
	const cols = 6

	if batchSize <= 0 {
		return 0, fmt.Errorf("invalid batch size %d", batchSize)
	}

	txn, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer txn.Rollback()

	start := 0
	affected := 0
	for start < len(recs) {
		end := min(start+batchSize, len(recs))

		qsb := strings.Builder{}
		qsb.WriteString("INSERT INTO captions (run_id, position, image_path, caption, failed, processed_at) VALUES")
		values := make([]any, 0, (end-start)*cols)
		for idx, rec := range recs[start:end] {
			qsb.WriteString(" (")
			for c := range cols {
				if c > 0 {
					qsb.WriteString(",")
				}
				qsb.WriteString("$")
				qsb.WriteString(strconv.Itoa(idx*cols + c + 1))
			}
			qsb.WriteString("),")

			values = append(values, runID.String(), rec.Position, rec.Path, rec.Caption, rec.Failed, rec.ProcessedAt)
		}
		queryString := qsb.String()

		// Remove trailing comma
		queryString = queryString[0 : len(queryString)-1]

		res, err := txn.ExecContext(ctx, queryString, values...)
		if err != nil {
			return 0, err
		}

		ra, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		affected += int(ra)
		start = end
	}

	return affected, txn.Commit()
}

// CaptionsForRun returns the captions recorded for a run in work list order.
func (db *DB) CaptionsForRun(ctx context.Context, runID uuid.UUID) ([]*CaptionRecord, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT id, run_id, position, image_path, caption, failed, processed_at
		FROM captions
		WHERE run_id=?
		ORDER BY position`, runID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*CaptionRecord
	for rows.Next() {
		rec := &CaptionRecord{}

		var rid string
		err := rows.Scan(
			&rec.Id,
			&rid,
			&rec.Position,
			&rec.Path,
			&rec.Caption,
			&rec.Failed,
			&rec.ProcessedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning captions: %w", err)
		}
		if rec.RunId, err = uuid.Parse(rid); err != nil {
			return nil, err
		}

		recs = append(recs, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating captions: %w", err)
	}

	return recs, nil
}
