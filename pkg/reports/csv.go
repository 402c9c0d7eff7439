package reports

import (
	"io"
	"os"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
)

// WriteCsv renders the statement's custodian rows as CSV.
func (s *MonthlyStatement) WriteCsv(w io.Writer) error {
	if err := gocsv.Marshal(s.Rows, w); err != nil {
		return errors.Wrap(err, "failed to write statement csv")
	}
	return nil
}

// WriteCsvFile writes the statement CSV to the given path.
func (s *MonthlyStatement) WriteCsvFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create statement file '%s'", path)
	}
	defer f.Close()

	return s.WriteCsv(f)
}
