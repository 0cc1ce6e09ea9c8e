package journal

import (
	"context"
	"os"
)

// Stats holds journal statistics.
type Stats struct {
	DBPath       string      `json:"db_path"`
	DBSizeBytes  int64       `json:"db_size_bytes"`
	TotalEntries int         `json:"total_entries"`
	Works        []WorkStats `json:"works"`
}

// WorkStats holds per-work counts.
type WorkStats struct {
	Work        string `json:"work"`
	Entries     int    `json:"entries"`
	Chapters    int    `json:"chapters"`
	LastChapter int    `json:"last_chapter"`
}

// Stats returns journal statistics.
func (j *Journal) Stats(ctx context.Context, dbPath string) (*Stats, error) {
	st := &Stats{DBPath: dbPath, Works: []WorkStats{}}

	if info, err := os.Stat(dbPath); err == nil {
		st.DBSizeBytes = info.Size()
	}

	if err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM facts`).Scan(&st.TotalEntries); err != nil {
		return st, err
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT work, COUNT(*) AS cnt, COUNT(DISTINCT chapter), MAX(chapter)
		FROM facts
		GROUP BY work ORDER BY work`)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	for rows.Next() {
		var w WorkStats
		if err := rows.Scan(&w.Work, &w.Entries, &w.Chapters, &w.LastChapter); err != nil {
			return st, err
		}
		st.Works = append(st.Works, w)
	}
	return st, rows.Err()
}
