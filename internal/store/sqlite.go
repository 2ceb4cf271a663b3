// 包 store 提供期刊归档（SQLite）：建表迁移/写入/查询/清理。
// 归档只写入历史，聚合流程从不读取。
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ekbrothers/aggregated-devops-rss-ai/internal/model"
)

// Issue 为一期归档的概要。
type Issue struct {
	ID               string
	WindowStart      time.Time
	WindowEnd        time.Time
	GeneratedAt      time.Time
	Entries          int
	HighImpact       int
	ExecutiveSummary string
}

// SQLite 封装 *sql.DB，基于 modernc.org/sqlite（纯 Go 实现）。
type SQLite struct {
	db *sql.DB
}

// OpenSQLite 打开 SQLite 数据库并执行自动迁移。
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

// Reset 清空归档表（不删除数据库文件）。
func (s *SQLite) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM issue_entries`); err != nil {
		return fmt.Errorf("delete issue_entries: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM issues`); err != nil {
		return fmt.Errorf("delete issues: %w", err)
	}
	return nil
}

// migrate 执行建表语句，保持幂等。
func (s *SQLite) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS issues (
            id TEXT PRIMARY KEY,
            window_start TEXT,
            window_end TEXT,
            generated_at TEXT,
            entries INTEGER,
            high_impact INTEGER,
            executive_summary TEXT
        );`,
		`CREATE TABLE IF NOT EXISTS issue_entries (
            issue_id TEXT,
            position INTEGER,
            title TEXT,
            link TEXT,
            published TEXT,
            provider TEXT,
            impact TEXT,
            summary TEXT,
            PRIMARY KEY (issue_id, position)
        );`,
	}
	for _, q := range stmts {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("exec migrate: %w", err)
		}
	}
	return nil
}

// IssueID 按窗口生成稳定 ID：同一窗口重复运行覆盖同一期。
func IssueID(w model.Window) string {
	key := "issue|" + ts(w.Start) + "|" + ts(w.End)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}

// SaveIssue 写入（或覆盖）一期及其条目，返回期 ID。
func (s *SQLite) SaveIssue(ctx context.Context, d model.Digest) (string, error) {
	id := IssueID(d.Window)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	q, args, err := sq.Insert("issues").
		Columns("id", "window_start", "window_end", "generated_at", "entries", "high_impact", "executive_summary").
		Values(id, ts(d.Window.Start), ts(d.Window.End), ts(d.Stats.GeneratedAt), len(d.Entries), d.Stats.HighImpact, d.ExecutiveSummary).
		Suffix(`ON CONFLICT(id) DO UPDATE SET generated_at=excluded.generated_at, entries=excluded.entries,
            high_impact=excluded.high_impact, executive_summary=excluded.executive_summary`).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build insert issue: %w", err)
	}
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return "", fmt.Errorf("upsert issue %s: %w", id, err)
	}

	q, args, err = sq.Delete("issue_entries").Where(sq.Eq{"issue_id": id}).ToSql()
	if err != nil {
		return "", fmt.Errorf("build delete entries: %w", err)
	}
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return "", fmt.Errorf("delete entries %s: %w", id, err)
	}

	for i, e := range d.Entries {
		impact, summary := model.ImpactLow, model.NoSummary
		if e.Analysis != nil {
			impact, summary = e.Analysis.ImpactLevel, e.Analysis.Summary
		}
		q, args, err := sq.Insert("issue_entries").
			Columns("issue_id", "position", "title", "link", "published", "provider", "impact", "summary").
			Values(id, i, e.Title, e.Link, ts(e.Published), e.ProviderName, impact, summary).
			ToSql()
		if err != nil {
			return "", fmt.Errorf("build insert entry: %w", err)
		}
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return "", fmt.Errorf("insert entry %s: %w", e.Link, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// ListIssues 返回全部归档，按窗口起点倒序。
func (s *SQLite) ListIssues(ctx context.Context) ([]Issue, error) {
	q, args, err := sq.Select("id", "window_start", "window_end", "generated_at", "entries", "high_impact", "COALESCE(executive_summary,'')").
		From("issues").
		OrderBy("window_start DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list issues: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query issues: %w", err)
	}
	defer rows.Close()
	var out []Issue
	for rows.Next() {
		var it Issue
		var start, end, gen string
		if err := rows.Scan(&it.ID, &start, &end, &gen, &it.Entries, &it.HighImpact, &it.ExecutiveSummary); err != nil {
			return nil, fmt.Errorf("scan issues: %w", err)
		}
		it.WindowStart, it.WindowEnd, it.GeneratedAt = parseTS(start), parseTS(end), parseTS(gen)
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate issues: %w", err)
	}
	return out, nil
}

// CountEntries 返回某期归档的条目数。
func (s *SQLite) CountEntries(ctx context.Context, issueID string) (int, error) {
	q, args, err := sq.Select("COUNT(1)").From("issue_entries").Where(sq.Eq{"issue_id": issueID}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries %s: %w", issueID, err)
	}
	return n, nil
}

// 时间统一以 UTC RFC3339 文本存储，按字符串排序即按时间排序。
const tsLayout = "2006-01-02T15:04:05Z07:00"

func ts(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(tsLayout)
}

func parseTS(s string) time.Time {
	t, err := time.Parse(tsLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
