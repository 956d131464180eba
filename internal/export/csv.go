// Package export maps batch results onto downstream presentation formats.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/hanqizheng/mailfacts/internal/parse"
)

// UTF-8 BOM for Excel compatibility on Windows.
var bom = []byte{0xEF, 0xBB, 0xBF}

var columns = []string{
	"Filename",
	"Project",
	"Partner Name",
	"Partner Email",
	"Stage",
	"Success",
	"Error Reason",
	"Subject",
	"Date",
	"From",
	"Confidence",
	"Match Type",
	"Processing Time (ms)",
}

// WriteCSV writes one row per parsing result, preceded by a BOM and the
// header row.
func WriteCSV(w io.Writer, results []parse.ParsingResult) error {
	if _, err := w.Write(bom); err != nil {
		return fmt.Errorf("failed to write BOM: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i := range results {
		if err := cw.Write(resultToRow(&results[i])); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func resultToRow(r *parse.ParsingResult) []string {
	date := ""
	if !r.EmailDate.IsZero() {
		date = r.EmailDate.Format("2006-01-02 15:04")
	}

	return []string{
		r.Filename,
		r.ProjectName,
		r.PartnerName,
		r.PartnerEmail,
		r.CommunicationStage,
		strconv.FormatBool(r.Success),
		r.ErrorReason,
		r.EmailSubject,
		date,
		r.EmailFrom,
		fmt.Sprintf("%.2f", r.Confidence),
		string(r.MatchType),
		strconv.FormatInt(r.ProcessingTimeMs, 10),
	}
}
