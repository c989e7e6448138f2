// Package gateway executes SQL against tenant databases through the
// connection router. Multi-statement sequences (DDL compiler output) run
// atomically in a single transaction; ad-hoc statements run directly so the
// user's own BEGIN/COMMIT keeps working.
package gateway

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgconn"
	"github.com/nexusdb/sqlgateway/internal/common/apperrors"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/config"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/gwerror"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/metastore"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/router"
	"github.com/nexusdb/sqlgateway/pkg/types"
	"github.com/rs/zerolog/log"
)

type Gateway struct {
	router *router.Router
	store  *metastore.Store
}

// QueryResult carries the rows of the last executed statement. Rows and the
// API-level error are mutually exclusive; a failed execution returns no
// partial rows.
type QueryResult struct {
	Columns    []string         `json:"columns"`
	Rows       []map[string]any `json:"rows"`
	RowCount   int64            `json:"row_count"`
	DurationMs int64            `json:"duration_ms"`
}

func New(r *router.Router, store *metastore.Store) *Gateway {
	return &Gateway{router: r, store: store}
}

// Execute runs statements in order on the tenant's database and returns the
// rows of the last statement. More than one statement, or atomic=true, wraps
// the sequence in a transaction that is rolled back on the first failure.
// Every call is recorded in the tenant's query history; history writes are
// best-effort and never fail the query path.
func (g *Gateway) Execute(ctx context.Context, tenantID types.TenantId, statements []string, atomic bool) (*QueryResult, apperrors.Error) {
	cleaned := make([]string, 0, len(statements))
	for _, stmt := range statements {
		if strings.TrimSpace(stmt) != "" {
			cleaned = append(cleaned, stmt)
		}
	}
	if len(cleaned) == 0 {
		return nil, gwerror.ErrValidation.Msg("no SQL statements provided")
	}
	for _, stmt := range cleaned {
		if err := checkDangerous(stmt); err != nil {
			return nil, err
		}
	}

	pool, err := g.router.Pool(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	conn, err := pool.Conn(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	execCtx, cancel := context.WithTimeout(ctx, config.Config().QueryTimeout())
	defer cancel()

	start := time.Now()
	result, err := g.run(execCtx, conn, cleaned, atomic || len(cleaned) > 1)
	result.DurationMs = time.Since(start).Milliseconds()

	entry := &metastore.QueryHistoryEntry{
		TenantID:   tenantID,
		SQL:        strings.Join(cleaned, "\n"),
		DurationMs: result.DurationMs,
	}
	if err != nil {
		entry.Status = types.QueryStatusError
		msg := err.Error()
		entry.ErrorMessage = &msg
	} else {
		entry.Status = types.QueryStatusSuccess
		rc := result.RowCount
		entry.RowCount = &rc
	}
	g.recordHistory(ctx, entry)

	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (g *Gateway) run(ctx context.Context, conn *sql.Conn, statements []string, atomic bool) (QueryResult, apperrors.Error) {
	if !atomic {
		return runStatement(ctx, conn, statements[0], 0, 1)
	}

	tx, txErr := conn.BeginTx(ctx, nil)
	if txErr != nil {
		return QueryResult{}, wrapDbError(ctx, txErr, 0, len(statements))
	}

	var result QueryResult
	var err apperrors.Error
	for i, stmt := range statements {
		result, err = runStatementTx(ctx, tx, stmt, i, len(statements))
		if err != nil {
			tx.Rollback()
			return QueryResult{}, err
		}
	}
	if txErr := tx.Commit(); txErr != nil {
		return QueryResult{}, wrapDbError(ctx, txErr, len(statements)-1, len(statements))
	}
	return result, nil
}

func runStatement(ctx context.Context, conn *sql.Conn, stmt string, index, total int) (QueryResult, apperrors.Error) {
	if !returnsRows(stmt) {
		res, err := conn.ExecContext(ctx, stmt)
		if err != nil {
			return QueryResult{}, wrapDbError(ctx, err, index, total)
		}
		return execResult(res), nil
	}
	rows, err := conn.QueryContext(ctx, stmt)
	if err != nil {
		return QueryResult{}, wrapDbError(ctx, err, index, total)
	}
	return collectRows(ctx, rows, index, total)
}

func runStatementTx(ctx context.Context, tx *sql.Tx, stmt string, index, total int) (QueryResult, apperrors.Error) {
	if !returnsRows(stmt) {
		res, err := tx.ExecContext(ctx, stmt)
		if err != nil {
			return QueryResult{}, wrapDbError(ctx, err, index, total)
		}
		return execResult(res), nil
	}
	rows, err := tx.QueryContext(ctx, stmt)
	if err != nil {
		return QueryResult{}, wrapDbError(ctx, err, index, total)
	}
	return collectRows(ctx, rows, index, total)
}

// returnsRows reports whether stmt produces a row set. Statements without one
// go through Exec so the driver's rows-affected count survives as row_count.
func returnsRows(stmt string) bool {
	s := strings.ToUpper(strings.TrimSpace(stmt))
	for _, kw := range []string{"SELECT", "VALUES", "SHOW", "TABLE", "EXPLAIN", "FETCH", "WITH"} {
		if rest, ok := strings.CutPrefix(s, kw); ok {
			if rest == "" || rest[0] == ' ' || rest[0] == '\t' || rest[0] == '\n' ||
				rest[0] == '\r' || rest[0] == '(' {
				return true
			}
		}
	}
	return strings.Contains(s, "RETURNING")
}

func execResult(res sql.Result) QueryResult {
	affected, err := res.RowsAffected()
	if err != nil {
		affected = 0
	}
	return QueryResult{Columns: []string{}, Rows: []map[string]any{}, RowCount: affected}
}

func collectRows(ctx context.Context, rows *sql.Rows, index, total int) (QueryResult, apperrors.Error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return QueryResult{}, wrapDbError(ctx, err, index, total)
	}

	result := QueryResult{Columns: cols, Rows: []map[string]any{}}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return QueryResult{}, wrapDbError(ctx, err, index, total)
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return QueryResult{}, wrapDbError(ctx, err, index, total)
	}
	result.RowCount = int64(len(result.Rows))
	return result, nil
}

// wrapDbError maps driver errors to the gateway taxonomy. Only the Postgres
// message text is surfaced; connection strings and driver internals stay out
// of API responses.
func wrapDbError(ctx context.Context, err error, index, total int) apperrors.Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return gwerror.ErrTimeout
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "57014": // query_canceled, statement_timeout fired
			return gwerror.ErrTimeout
		case strings.HasPrefix(pgErr.Code, "42"): // syntax or access rule violation
			return gwerror.ErrSyntax.Msg(pgErr.Message)
		}
		if total > 1 {
			return gwerror.ErrStatementFailed.Msg(
				fmt.Sprintf("statement %d of %d failed: %s", index+1, total, pgErr.Message))
		}
		return gwerror.ErrStatementFailed.Msg(pgErr.Message)
	}

	log.Ctx(ctx).Error().Err(err).Msg("query execution failed")
	return gwerror.ErrGateway.Msg("query execution failed")
}

// recordHistory appends the entry on a detached context so a slow or failed
// metadata write cannot delay or fail the query response.
func (g *Gateway) recordHistory(ctx context.Context, entry *metastore.QueryHistoryEntry) {
	logger := log.Ctx(ctx)
	go func() {
		hctx, cancel := context.WithTimeout(logger.WithContext(context.Background()), 5*time.Second)
		defer cancel()
		if err := g.store.AppendQueryHistory(hctx, entry); err != nil {
			logger.Warn().Err(err).Msg("query history write failed")
		}
	}()
}
