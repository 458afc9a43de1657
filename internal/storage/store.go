// Package storage 是可选的 SQLite 落库：一次 harvest 的报告与合并后的条目写入同一事务。
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/John-Robertt/chartharvest/internal/domain"
)

// Store 是 SQLite 实现；零值不可用，必须通过 Open/New 构造。
type Store struct {
	db *sql.DB
}

// Open 打开（必要时创建）path 处的数据库并执行 migration。
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sqlite 路径不能为空")
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	s, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New 基于已打开的 db 构造 Store（会执行 migration）。
func New(db *sql.DB) (*Store, error) {
	if err := NewMigrationRunner(db).Run(); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// SaveHarvest 在一个事务内写入报告、逐期结果与条目。同一 run_id 重复写入返回错误。
func (s *Store) SaveHarvest(ctx context.Context, rr domain.RunReport, records []domain.HarvestRecord) error {
	if strings.TrimSpace(rr.RunID) == "" {
		return errors.New("run_id 不能为空")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO harvests (run_id, chart, start_period, end_period, started_at, finished_at, canceled, succeeded, failed, records)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rr.RunID, rr.Chart, rr.Start, rr.End,
		rr.StartedAt.UTC().Format(time.RFC3339Nano), rr.FinishedAt.UTC().Format(time.RFC3339Nano),
		rr.Canceled, rr.Summary.Succeeded, rr.Summary.Failed, rr.Summary.Records,
	); err != nil {
		return fmt.Errorf("写入 harvests：%w", err)
	}

	itemStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO harvest_items (run_id, seq, period, chart_date, status, error_code, error_msg, entries, skipped_rows)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer itemStmt.Close()
	for i, it := range rr.Items {
		if _, err := itemStmt.ExecContext(ctx, rr.RunID, i+1, it.Period, it.Date, it.Status, it.ErrorCode, it.ErrorMsg, it.Entries, it.SkippedRows); err != nil {
			return fmt.Errorf("写入 harvest_items：%w", err)
		}
	}

	entryStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chart_entries (run_id, chart, chart_date, rank, title, artist, last_week, peak, weeks, image_url, trend)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer entryStmt.Close()
	for _, rec := range records {
		e := rec.Entry
		trend := e.Trend
		if trend == "" {
			trend = domain.TrendUnavailable
		}
		if _, err := entryStmt.ExecContext(ctx, rr.RunID, rr.Chart, rec.Date.String(),
			e.Rank, e.Title, e.Artist, e.Prev.String(), e.Peak, e.Weeks.String(), e.ImageURL.String(), string(trend),
		); err != nil {
			return fmt.Errorf("写入 chart_entries：%w", err)
		}
	}

	return tx.Commit()
}

// HarvestRow 是 harvests 表的一行。
type HarvestRow struct {
	RunID     string `json:"run_id"`
	Chart     string `json:"chart"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Canceled  bool   `json:"canceled"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Records   int    `json:"records"`
}

// GetHarvest 按 run_id 读取一次 harvest 的汇总；不存在返回 sql.ErrNoRows。
func (s *Store) GetHarvest(ctx context.Context, runID string) (HarvestRow, error) {
	var h HarvestRow
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, chart, start_period, end_period, canceled, succeeded, failed, records
		FROM harvests WHERE run_id = ?`, runID,
	).Scan(&h.RunID, &h.Chart, &h.Start, &h.End, &h.Canceled, &h.Succeeded, &h.Failed, &h.Records)
	return h, err
}

// EntriesByDate 读取某期的条目（跨所有 run，按写入顺序）。
func (s *Store) EntriesByDate(ctx context.Context, chart string, date domain.ChartDate) ([]domain.ChartEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT rank, title, artist, last_week, peak, weeks, image_url, trend
		FROM chart_entries WHERE chart = ? AND chart_date = ? ORDER BY id`, chart, date.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ChartEntry
	for rows.Next() {
		var (
			e                       domain.ChartEntry
			last, weeks, img, trend string
		)
		if err := rows.Scan(&e.Rank, &e.Title, &e.Artist, &last, &e.Peak, &weeks, &img, &trend); err != nil {
			return nil, err
		}
		switch last {
		case "NEW":
			e.Prev = domain.PrevRank{Kind: domain.PrevNew}
		default:
			e.Prev = domain.ParsePrevRank(last, last != domain.Unavailable)
		}
		if weeks != domain.Unavailable {
			e.Weeks = domain.Text(weeks)
		}
		if img != domain.Unavailable {
			e.ImageURL = domain.Text(img)
		}
		e.Trend = domain.ParseTrend(trend)
		out = append(out, e)
	}
	return out, rows.Err()
}
