package main

import (
	"context"
	"crypto/sha256"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/fop-tax-tracker/internal/config"
	"github.com/dvloznov/fop-tax-tracker/internal/logger"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
)

// Migration represents a single migration file
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

// AppliedMigration represents a migration that has already been applied
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
	Checksum  string
	AppliedBy string
}

// target names the dataset migrations run against.
type target struct {
	project string
	dataset string
}

func (t target) table(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", t.project, t.dataset, name)
}

var migrationPattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := logger.NewWithLevel(cfg.LogLevel)

	var (
		projectID     string
		datasetID     string
		appliedBy     string
		migrationsDir string
		dryRun        bool
	)
	flag.StringVar(&projectID, "project", cfg.BigQueryProject, "GCP project ID (defaults to BIGQUERY_PROJECT)")
	flag.StringVar(&datasetID, "dataset", cfg.BigQueryDataset, "BigQuery dataset ID")
	flag.StringVar(&appliedBy, "applied-by", "migrate-cli", "Name of the tool applying migrations")
	flag.StringVar(&migrationsDir, "migrations", "migrations/bigquery", "Path to migrations directory")
	flag.BoolVar(&dryRun, "dry-run", false, "List pending migrations without applying them")
	flag.Parse()

	if projectID == "" {
		log.Fatal().Msg("-project flag or BIGQUERY_PROJECT is required")
	}
	tgt := target{project: projectID, dataset: datasetID}

	ctx := logger.WithContext(context.Background(), log)

	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer client.Close()

	log.Info().Str("project", projectID).Str("dataset", datasetID).Msg("Connected to BigQuery")

	if err := ensureSchemaMigrationsTable(ctx, client, tgt); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure schema_migrations table")
	}

	dir, err := resolveDir(migrationsDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to locate migrations")
	}
	migrations, err := readMigrations(dir, tgt, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read migrations")
	}
	log.Info().Int("count", len(migrations)).Msg("Found migration files")

	applied, err := getAppliedMigrations(ctx, client, tgt)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to get applied migrations")
	}
	log.Info().Int("count", len(applied)).Msg("Found already applied migrations")

	for _, drift := range checksumDrift(migrations, applied) {
		log.Warn().Str("migration", drift).Msg("Applied migration was edited after it ran")
	}

	pending := pendingMigrations(migrations, applied)
	for _, m := range pending {
		ml := log.With().Str("migration", fmt.Sprintf("%04d_%s", m.Version, m.Name)).Logger()
		if dryRun {
			ml.Info().Msg("Pending")
			continue
		}

		ml.Info().Msg("Applying")
		if err := runQuery(ctx, client.Query(m.SQL)); err != nil {
			ml.Fatal().Err(err).Msg("Failed to execute migration")
		}
		if err := recordMigration(ctx, client, tgt, m, appliedBy); err != nil {
			ml.Fatal().Err(err).Msg("Failed to record migration")
		}
		ml.Info().Msg("Applied")
	}

	switch {
	case len(pending) == 0:
		log.Info().Msg("No new migrations to apply. Dataset is up to date.")
	case dryRun:
		log.Info().Int("count", len(pending)).Msg("Dry run, nothing applied")
	default:
		log.Info().Int("count", len(pending)).Msg("Successfully applied migrations")
	}
}

// ensureSchemaMigrationsTable creates the schema_migrations table if it doesn't exist
func ensureSchemaMigrationsTable(ctx context.Context, client *bigquery.Client, t target) error {
	sql := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version       INT64 NOT NULL,
			name          STRING NOT NULL,
			applied_at    TIMESTAMP NOT NULL,
			checksum      STRING,
			applied_by    STRING
		)
	`, t.table("schema_migrations"))

	return runQuery(ctx, client.Query(sql))
}

// resolveDir accepts dir relative to the working directory or to the
// repository root when run from cmd/migrate.
func resolveDir(dir string) (string, error) {
	if _, err := os.Stat(dir); err == nil {
		return dir, nil
	}
	alt := filepath.Join("..", "..", dir)
	if _, err := os.Stat(alt); err == nil {
		return alt, nil
	}
	return "", fmt.Errorf("migrations directory not found: %s", dir)
}

// readMigrations reads all migration files from dir, substituting the
// {{PROJECT_ID}} and {{DATASET_ID}} placeholders.
func readMigrations(dir string, t target, log zerolog.Logger) ([]Migration, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	var migrations []Migration
	for _, file := range files {
		if file.IsDir() {
			continue
		}

		matches := migrationPattern.FindStringSubmatch(file.Name())
		if matches == nil {
			log.Warn().Str("file", file.Name()).Msg("Skipping file with invalid format")
			continue
		}

		version, err := strconv.Atoi(matches[1])
		if err != nil {
			log.Warn().Str("file", file.Name()).Msg("Skipping file with invalid version")
			continue
		}

		content, err := os.ReadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading file %s: %w", file.Name(), err)
		}

		sql := strings.ReplaceAll(string(content), "{{PROJECT_ID}}", t.project)
		sql = strings.ReplaceAll(sql, "{{DATASET_ID}}", t.dataset)

		// Checksum covers the file as written, so the same migration applied
		// to another dataset keeps its checksum.
		migrations = append(migrations, Migration{
			Version:  version,
			Name:     matches[2],
			Filename: file.Name(),
			SQL:      sql,
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	for i := 1; i < len(migrations); i++ {
		if migrations[i].Version == migrations[i-1].Version {
			return nil, fmt.Errorf("duplicate migration version %04d: %s and %s",
				migrations[i].Version, migrations[i-1].Filename, migrations[i].Filename)
		}
	}

	return migrations, nil
}

// pendingMigrations returns the migrations whose version is not applied yet.
func pendingMigrations(migrations []Migration, applied []AppliedMigration) []Migration {
	done := make(map[int]bool, len(applied))
	for _, am := range applied {
		done[am.Version] = true
	}

	var pending []Migration
	for _, m := range migrations {
		if !done[m.Version] {
			pending = append(pending, m)
		}
	}
	return pending
}

// checksumDrift names the applied migrations whose file no longer matches
// the recorded checksum.
func checksumDrift(migrations []Migration, applied []AppliedMigration) []string {
	recorded := make(map[int]string, len(applied))
	for _, am := range applied {
		recorded[am.Version] = am.Checksum
	}

	var drift []string
	for _, m := range migrations {
		if sum, ok := recorded[m.Version]; ok && sum != "" && sum != m.Checksum {
			drift = append(drift, m.Filename)
		}
	}
	return drift
}

// getAppliedMigrations retrieves the list of already applied migrations
func getAppliedMigrations(ctx context.Context, client *bigquery.Client, t target) ([]AppliedMigration, error) {
	sql := fmt.Sprintf(`
		SELECT version, name, applied_at, checksum, applied_by
		FROM %s
		ORDER BY version ASC
	`, t.table("schema_migrations"))

	it, err := client.Query(sql).Read(ctx)
	if err != nil {
		// If table doesn't exist yet, return empty list
		if strings.Contains(err.Error(), "Not found") {
			return []AppliedMigration{}, nil
		}
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	var applied []AppliedMigration
	for {
		var row struct {
			Version   int64
			Name      string
			AppliedAt time.Time
			Checksum  bigquery.NullString
			AppliedBy bigquery.NullString
		}

		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating results: %w", err)
		}

		applied = append(applied, AppliedMigration{
			Version:   int(row.Version),
			Name:      row.Name,
			AppliedAt: row.AppliedAt,
			Checksum:  row.Checksum.StringVal,
			AppliedBy: row.AppliedBy.StringVal,
		})
	}

	return applied, nil
}

// recordMigration records a successfully applied migration in schema_migrations
func recordMigration(ctx context.Context, client *bigquery.Client, t target, m Migration, appliedBy string) error {
	sql := fmt.Sprintf(`
		INSERT INTO %s
		(version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)
	`, t.table("schema_migrations"))

	query := client.Query(sql)
	query.Parameters = []bigquery.QueryParameter{
		{Name: "version", Value: m.Version},
		{Name: "name", Value: m.Name},
		{Name: "checksum", Value: m.Checksum},
		{Name: "applied_by", Value: appliedBy},
	}

	return runQuery(ctx, query)
}

func runQuery(ctx context.Context, query *bigquery.Query) error {
	job, err := query.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}

	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}

	return nil
}
