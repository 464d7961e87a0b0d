package products

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/pedroojr/xml-merch-importer/internal/nfe"
)

const (
	csvFlushEvery = 200
	csvBufferSize = 32 * 1024
)

type csvStreamer struct {
	buf          *bufio.Writer
	csv          *csv.Writer
	flushEvery   int
	pendingLines int
}

func newCSVStreamer(w io.Writer) *csvStreamer {
	buf := bufio.NewWriterSize(w, csvBufferSize)
	writer := csv.NewWriter(buf)
	writer.UseCRLF = true
	return &csvStreamer{buf: buf, csv: writer, flushEvery: csvFlushEvery}
}

func (s *csvStreamer) writeComment(line string) error {
	if s == nil || s.buf == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	if !strings.HasSuffix(line, "\r\n") {
		line = strings.TrimSuffix(line, "\n")
		line += "\r\n"
	}
	if _, err := s.buf.WriteString(line); err != nil {
		return err
	}
	return nil
}

func (s *csvStreamer) writeRow(row []string) error {
	if s == nil || s.csv == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	if err := s.csv.Write(row); err != nil {
		return err
	}
	s.pendingLines++
	if s.flushEvery > 0 && s.pendingLines >= s.flushEvery {
		return s.Flush()
	}
	return nil
}

func (s *csvStreamer) Flush() error {
	if s == nil || s.csv == nil || s.buf == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	s.csv.Flush()
	if err := s.csv.Error(); err != nil {
		return err
	}
	if err := s.buf.Flush(); err != nil {
		return err
	}
	s.pendingLines = 0
	return nil
}

func (s *csvStreamer) Close() error {
	return s.Flush()
}

var csvHeader = []string{
	"Code", "EAN", "Name", "NCM", "CFOP", "UOM",
	"Quantity", "UnitPrice", "Total", "Discount", "Net",
	"Color", "SalePrice",
}

// WriteProductsCSV streams a batch as CSV in document order, one comment
// line of invoice metadata followed by a header and one row per item.
// Decimal fields use a dot separator regardless of locale.
func WriteProductsCSV(w io.Writer, imp Import, items []nfe.Product) error {
	streamer := newCSVStreamer(w)
	if err := streamer.writeComment(fmt.Sprintf("# Invoice: %s | Supplier: %s | Items: %d", imp.Number, imp.Supplier, len(items))); err != nil {
		return err
	}
	if err := streamer.writeRow(csvHeader); err != nil {
		return err
	}
	for _, p := range items {
		if err := streamer.writeRow([]string{
			p.Code,
			p.EAN,
			p.Name,
			p.NCM,
			p.CFOP,
			p.UOM,
			formatDecimal(p.Quantity),
			formatDecimal(p.UnitPrice),
			formatDecimal(p.TotalPrice),
			formatDecimal(p.Discount),
			formatDecimal(p.NetPrice),
			p.Color,
			formatDecimal(p.SalePrice),
		}); err != nil {
			return err
		}
	}
	return streamer.Close()
}

func formatDecimal(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
