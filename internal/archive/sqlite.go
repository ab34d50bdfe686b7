package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Deiviidsito/backend-nasa/internal/models"
)

type SQLiteArchive struct {
	db *sql.DB
}

func NewSQLiteArchive(path string) (*SQLiteArchive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	a := &SQLiteArchive{
		db: db,
	}
	if err := a.migrate(); err != nil {
		return nil, fmt.Errorf("error while migrating to database: %w", err)
	}

	return a, nil
}

func (a *SQLiteArchive) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS grids (
			city_id TEXT NOT NULL,
			generated_at DATETIME NOT NULL,
			west REAL NOT NULL,
			south REAL NOT NULL,
			east REAL NOT NULL,
			north REAL NOT NULL,
			resolution REAL NOT NULL,
			rows INTEGER NOT NULL,
			cols INTEGER NOT NULL,
			PRIMARY KEY (city_id, generated_at)
		);

		CREATE TABLE IF NOT EXISTS grid_cells (
			city_id TEXT NOT NULL,
			generated_at DATETIME NOT NULL,
			row INTEGER NOT NULL,
			col INTEGER NOT NULL,
			center_lat REAL NOT NULL,
			center_lon REAL NOT NULL,
			no2 REAL,
			o3 REAL,
			pm25 REAL,
			temp REAL,
			wind REAL,
			precip REAL,
			risk_score REAL NOT NULL,
			risk_class TEXT NOT NULL,
			data_quality REAL NOT NULL,
			sources TEXT NOT NULL,
			PRIMARY KEY (city_id, generated_at, row, col),
			FOREIGN KEY (city_id, generated_at) REFERENCES grids(city_id, generated_at)
		);

		CREATE INDEX IF NOT EXISTS idx_grids_city ON grids(city_id, generated_at);
  	`

	_, err := a.db.Exec(schema)
	return err
}

// SaveGrid writes one generation in a single transaction. Re-saving the same
// (city, generation) pair is an error.
func (a *SQLiteArchive) SaveGrid(ctx context.Context, g *models.CityGrid) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO grids (city_id, generated_at, west, south, east, north, resolution, rows, cols)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.CityID, g.GeneratedAt.UTC(), g.BBox.West, g.BBox.South, g.BBox.East, g.BBox.North,
		g.Resolution, g.Rows, g.Cols,
	)
	if err != nil {
		return fmt.Errorf("error inserting grid: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO grid_cells (city_id, generated_at, row, col, center_lat, center_lon,
			no2, o3, pm25, temp, wind, precip, risk_score, risk_class, data_quality, sources)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("error preparing cell insert: %w", err)
	}
	defer stmt.Close()

	for i := range g.Cells {
		cell := &g.Cells[i]
		_, err = stmt.ExecContext(ctx,
			g.CityID, g.GeneratedAt.UTC(), cell.Row, cell.Col, cell.CenterLat, cell.CenterLon,
			nullable(cell.Values, models.VarNO2),
			nullable(cell.Values, models.VarO3),
			nullable(cell.Values, models.VarPM25),
			nullable(cell.Values, models.VarTemp),
			nullable(cell.Values, models.VarWind),
			nullable(cell.Values, models.VarPrecip),
			cell.RiskScore, string(cell.RiskClass), cell.DataQuality,
			strings.Join(cell.Sources, ";"),
		)
		if err != nil {
			return fmt.Errorf("error inserting cell (%d,%d): %w", cell.Row, cell.Col, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing grid: %w", err)
	}
	return nil
}

// ListGenerations returns archived generation timestamps for a city, newest
// first. limit <= 0 returns all of them.
func (a *SQLiteArchive) ListGenerations(ctx context.Context, cityID string, limit int) ([]time.Time, error) {
	query := `SELECT generated_at FROM grids WHERE city_id = ? ORDER BY generated_at DESC`
	args := []any{cityID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing generations: %w", err)
	}
	defer rows.Close()

	var generations []time.Time
	for rows.Next() {
		var ts time.Time
		if err := rows.Scan(&ts); err != nil {
			return nil, fmt.Errorf("error scanning generation: %w", err)
		}
		generations = append(generations, ts.UTC())
	}
	return generations, rows.Err()
}

// LoadGrid reconstructs one archived generation, cells in row-major order.
func (a *SQLiteArchive) LoadGrid(ctx context.Context, cityID string, generatedAt time.Time) (*models.CityGrid, error) {
	g := &models.CityGrid{CityID: cityID}
	err := a.db.QueryRowContext(ctx, `
		SELECT generated_at, west, south, east, north, resolution, rows, cols
		FROM grids WHERE city_id = ? AND generated_at = ?`,
		cityID, generatedAt.UTC(),
	).Scan(&g.GeneratedAt, &g.BBox.West, &g.BBox.South, &g.BBox.East, &g.BBox.North,
		&g.Resolution, &g.Rows, &g.Cols)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no archived grid for %s at %s",
			models.ErrGridNotReady, cityID, generatedAt.UTC().Format(time.RFC3339))
	}
	if err != nil {
		return nil, fmt.Errorf("error loading grid: %w", err)
	}
	g.GeneratedAt = g.GeneratedAt.UTC()

	rows, err := a.db.QueryContext(ctx, `
		SELECT row, col, center_lat, center_lon, no2, o3, pm25, temp, wind, precip,
			risk_score, risk_class, data_quality, sources
		FROM grid_cells WHERE city_id = ? AND generated_at = ?
		ORDER BY row, col`,
		cityID, generatedAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("error loading cells: %w", err)
	}
	defer rows.Close()

	g.Cells = make([]models.GridCell, 0, g.Rows*g.Cols)
	for rows.Next() {
		var cell models.GridCell
		var no2, o3, pm25, temp, wind, precip sql.NullFloat64
		var class, sources string
		if err := rows.Scan(&cell.Row, &cell.Col, &cell.CenterLat, &cell.CenterLon,
			&no2, &o3, &pm25, &temp, &wind, &precip,
			&cell.RiskScore, &class, &cell.DataQuality, &sources); err != nil {
			return nil, fmt.Errorf("error scanning cell: %w", err)
		}
		cell.RiskClass = models.RiskClass(class)
		cell.Values = map[string]float64{}
		setIfValid(cell.Values, models.VarNO2, no2)
		setIfValid(cell.Values, models.VarO3, o3)
		setIfValid(cell.Values, models.VarPM25, pm25)
		setIfValid(cell.Values, models.VarTemp, temp)
		setIfValid(cell.Values, models.VarWind, wind)
		setIfValid(cell.Values, models.VarPrecip, precip)
		if sources != "" {
			cell.Sources = strings.Split(sources, ";")
		}
		g.Cells = append(g.Cells, cell)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading cells: %w", err)
	}
	return g, nil
}

// Prune deletes all but the newest keep generations of a city and reports how
// many generations were removed.
func (a *SQLiteArchive) Prune(ctx context.Context, cityID string, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		DELETE FROM grid_cells WHERE city_id = ? AND generated_at NOT IN (
			SELECT generated_at FROM grids WHERE city_id = ?
			ORDER BY generated_at DESC LIMIT ?
		)`, cityID, cityID, keep)
	if err != nil {
		return 0, fmt.Errorf("error pruning cells: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		DELETE FROM grids WHERE city_id = ? AND generated_at NOT IN (
			SELECT generated_at FROM grids WHERE city_id = ?
			ORDER BY generated_at DESC LIMIT ?
		)`, cityID, cityID, keep)
	if err != nil {
		return 0, fmt.Errorf("error pruning grids: %w", err)
	}

	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error counting pruned grids: %w", err)
	}
	return removed, tx.Commit()
}

func (a *SQLiteArchive) Close() error {
	return a.db.Close()
}

func nullable(values map[string]float64, key string) sql.NullFloat64 {
	v, ok := values[key]
	return sql.NullFloat64{Float64: v, Valid: ok}
}

func setIfValid(values map[string]float64, key string, v sql.NullFloat64) {
	if v.Valid {
		values[key] = v.Float64
	}
}
