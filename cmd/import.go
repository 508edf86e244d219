package main

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/procure-cli/internal/model"
	"github.com/sells-group/procure-cli/internal/region"
	"github.com/sells-group/procure-cli/pkg/geocode"
)

var importCSVPath string

// importCmd loads listings from a CSV backlog. Out-of-region rows are
// filtered here, before the backlog, so the attempt engine never sees them.
var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import listings from CSV into the backlog",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		classifier := region.NewClassifier(cfg.Region, geocode.NewClient())

		f, err := os.Open(importCSVPath)
		if err != nil {
			return eris.Wrapf(err, "open %s", importCSVPath)
		}
		defer f.Close() //nolint:errcheck

		listings, outOfRegion, err := readListingCSV(ctx, f, classifier)
		if err != nil {
			return err
		}

		inserted, err := st.InsertListings(ctx, listings)
		if err != nil {
			return err
		}

		zap.L().Info("import complete",
			zap.String("csv", importCSVPath),
			zap.Int("inserted", inserted),
			zap.Int("duplicates", len(listings)-inserted),
			zap.Int("out_of_region", outOfRegion),
		)
		return nil
	},
}

// readListingCSV parses rows of title,agency,location,url, classifying each
// row's region and dropping out-of-region rows. A header row is detected by
// its first cell and skipped.
func readListingCSV(ctx context.Context, r io.Reader, classifier *region.Classifier) ([]model.Listing, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var listings []model.Listing
	outOfRegion := 0
	first := true

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, eris.Wrap(err, "read csv")
		}
		if len(record) < 4 {
			continue
		}
		if first {
			first = false
			if strings.EqualFold(strings.TrimSpace(record[0]), "title") {
				continue
			}
		}

		title := strings.TrimSpace(record[0])
		agency := strings.TrimSpace(record[1])
		location := strings.TrimSpace(record[2])
		originURL := strings.TrimSpace(record[3])
		if title == "" || originURL == "" {
			continue
		}

		tag := classifier.Classify(ctx, location)
		if tag == region.OutOfRegion {
			outOfRegion++
			continue
		}

		listings = append(listings, model.Listing{
			Title:     title,
			Agency:    agency,
			Location:  location,
			OriginURL: originURL,
			Region:    tag,
			Status:    model.ListingStatusPending,
		})
	}

	return listings, outOfRegion, nil
}

func init() {
	importCmd.Flags().StringVar(&importCSVPath, "csv", "", "path to CSV file (required)")
	_ = importCmd.MarkFlagRequired("csv")
	rootCmd.AddCommand(importCmd)
}
