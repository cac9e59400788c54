package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/escrow-tf/trackmmr"
	"github.com/escrow-tf/trackmmr/heroes"
)

const timeLayout = "2006-01-02 15:04:05"

func formatTime(t time.Time) string {
	return t.Format(timeLayout)
}

func printFetchSummary(w io.Writer, result fetchResult) {
	fmt.Fprintf(w, "Fetched %d ranked matches, %d new records saved.\n", len(result.Records), result.Inserted)
	if len(result.Records) > 0 {
		fmt.Fprintf(w, "Current MMR: %d\n", result.Records[0].Rating)
	}
}

// printHistory writes records as a table. days only labels the table, non-positive meaning
// all time.
func printHistory(w io.Writer, records []trackmmr.RatingRecord, days int) error {
	if len(records) == 0 {
		if days > 0 {
			_, err := fmt.Fprintf(w, "No MMR records found in the last %d days.\n", days)
			return err
		}
		_, err := fmt.Fprintln(w, "No MMR records found.")
		return err
	}

	header := "MMR History (all time)"
	if days > 0 {
		header = fmt.Sprintf("MMR History (last %d days)", days)
	}
	fmt.Fprintf(w, "%s\n%s\n\n", header, strings.Repeat("=", len(header)))

	table := tabwriter.NewWriter(w, 0, 0, 1, ' ', tabwriter.Debug)
	fmt.Fprintln(table, "Date\t Match ID\t MMR\t Change\t Hero\t Result")
	for _, record := range records {
		fmt.Fprintf(table, "%s\t %d\t %d\t %s\t %s\t %s\n",
			formatTime(record.Timestamp),
			record.MatchID,
			record.Rating,
			record.ChangeDisplay(),
			heroes.Name(record.HeroID),
			record.Outcome(),
		)
	}
	return table.Flush()
}
