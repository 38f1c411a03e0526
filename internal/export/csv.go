// Package export serializes sweep data for download.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/RMahshie/flowrig/pkg/models"
)

// ContentType is the MIME type of CSV exports
const ContentType = "text/csv; charset=utf-8"

// Header is the first CSV record
var Header = []string{"Frequency (Hz)", "Flow Rate (L/min)"}

// WriteCSV writes points as two-column CSV: frequency in shortest form,
// flow rate with three decimals
func WriteCSV(w io.Writer, points []models.DataPoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, p := range points {
		record := []string{
			strconv.FormatFloat(p.Frequency, 'f', -1, 64),
			strconv.FormatFloat(p.FlowRate, 'f', 3, 64),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSV returns the CSV encoding of points
func CSV(points []models.DataPoint) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, points); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FileName returns the download name for an export taken on day
func FileName(day time.Time) string {
	return fmt.Sprintf("flow_data_%s.csv", day.Format(time.DateOnly))
}
