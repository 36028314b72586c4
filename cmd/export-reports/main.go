package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkl-testcase/wo_backend/config"
	"github.com/pkl-testcase/wo_backend/models"
	"github.com/pkl-testcase/wo_backend/utils"
)

type exportOptions struct {
	out     string
	bucket  string
	object  string
	orderBy string
}

// export-reports writes the archive table to an XLSX file, locally or to
// gs://$EXPORT_GCS_BUCKET/<object>.
func main() {
	var opts exportOptions
	flag.StringVar(&opts.out, "out", "", "Local output path. Defaults to reports-<date>.xlsx when no bucket is set.")
	flag.StringVar(&opts.bucket, "bucket", config.EnvOrDefault("EXPORT_GCS_BUCKET", ""), "Optional: GCS bucket to upload to")
	flag.StringVar(&opts.object, "object", "", "Object name inside the bucket. Defaults to exports/reports-<timestamp>.xlsx")
	flag.StringVar(&opts.orderBy, "order-by", models.DefaultOrderBy, "Sort order, \"<column> [asc|desc]\"")
	flag.Parse()

	os.Exit(run(context.Background(), opts, os.Stdout, os.Stderr))
}

// run returns the process exit code. Every deferred close runs before main exits.
func run(ctx context.Context, opts exportOptions, stdout, stderr io.Writer) int {
	db, err := config.ConnectDatabaseWithRetry(ctx, config.DatabaseSettingsFromEnv("DB_"))
	if err != nil {
		fmt.Fprintf(stderr, "connect database: %v\n", err)
		return 1
	}
	defer config.CloseDatabase(db)

	store := models.NewWorkOrderStore(db, models.WithQueryTimeout(config.QueryTimeout()))
	reports, err := store.ListReports(ctx, opts.orderBy)
	if err != nil {
		fmt.Fprintf(stderr, "list reports: %v\n", err)
		return 1
	}

	var buf bytes.Buffer
	if err := models.WriteReportsXLSX(&buf, reports); err != nil {
		fmt.Fprintf(stderr, "write xlsx: %v\n", err)
		return 1
	}

	now := time.Now().UTC()
	if strings.TrimSpace(opts.bucket) != "" {
		name := opts.object
		if name == "" {
			name = fmt.Sprintf("exports/reports-%s.xlsx", now.Format("20060102-150405"))
		}
		if err := utils.UploadToGCS(ctx, opts.bucket, name, utils.XLSXContentType, &buf); err != nil {
			fmt.Fprintf(stderr, "upload: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "exported %d reports to gs://%s/%s\n", len(reports), opts.bucket, name)
		return 0
	}

	path := opts.out
	if path == "" {
		path = fmt.Sprintf("reports-%s.xlsx", now.Format("20060102"))
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		fmt.Fprintf(stderr, "write %s: %v\n", path, err)
		return 1
	}
	fmt.Fprintf(stdout, "exported %d reports to %s\n", len(reports), path)
	return 0
}
