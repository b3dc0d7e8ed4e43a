package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/nerrad567/gatekeeper-core/internal/student"
)

// MaxRows caps the number of data rows accepted from one workbook.
const MaxRows = 10000

var (
	// ErrInvalidWorkbook is returned when the upload is not a readable .xlsx file.
	ErrInvalidWorkbook = errors.New("importer: invalid workbook")

	// ErrNoSheets is returned when the workbook has no worksheet.
	ErrNoSheets = errors.New("importer: workbook has no sheets")

	// ErrTooManyRows is returned when the sheet exceeds MaxRows data rows.
	ErrTooManyRows = errors.New("importer: too many rows")
)

// Creator stores one record. *student.Service satisfies this interface.
type Creator interface {
	Create(ctx context.Context, in student.Student) (*student.Student, error)
}

// Recorder receives one call per completed import run.
type Recorder interface {
	RecordImport(imported, failed int, duration time.Duration)
}

// Logger defines the logging interface used by the importer.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// RowError describes one row that was not imported. Row is the 1-based
// spreadsheet row number.
type RowError struct {
	Row       int    `json:"row"`
	StudentID string `json:"student_id,omitempty"`
	Error     string `json:"error"`
}

// Result summarises an import.
type Result struct {
	Imported int        `json:"imported"`
	Failed   []RowError `json:"failed"`
}

// Importer feeds workbook rows into a Creator.
type Importer struct {
	creator  Creator
	recorder Recorder
	logger   Logger
}

// New creates an importer.
func New(creator Creator) *Importer {
	return &Importer{creator: creator, logger: noopLogger{}}
}

// SetLogger sets the logger for the importer.
func (im *Importer) SetLogger(logger Logger) {
	if logger != nil {
		im.logger = logger
	}
}

// SetRecorder registers a sink for import run totals.
func (im *Importer) SetRecorder(r Recorder) {
	im.recorder = r
}

// Import reads the workbook from r and creates one student per row.
//
// A non-nil error means nothing was attempted (bad workbook) or the
// context ended part way; in the latter case Result still reports the
// rows processed so far.
func (im *Importer) Import(ctx context.Context, r io.Reader) (*Result, error) {
	start := time.Now()
	res, err := im.importRows(ctx, r)
	if res != nil && im.recorder != nil {
		im.recorder.RecordImport(res.Imported, len(res.Failed), time.Since(start))
	}
	return res, err
}

func (im *Importer) importRows(ctx context.Context, r io.Reader) (*Result, error) {
	rows, err := readRows(r)
	if err != nil {
		return nil, err
	}

	cols, start := detectColumns(rows)
	data := rows[start:]
	if len(data) > MaxRows {
		return nil, fmt.Errorf("%w: %d rows, limit %d", ErrTooManyRows, len(data), MaxRows)
	}

	res := &Result{Failed: []RowError{}}
	for i, row := range data {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("import interrupted: %w", err)
		}
		if blank(row) {
			continue
		}

		rowNum := start + i + 1
		in := cols.student(row)
		if _, err := im.creator.Create(ctx, in); err != nil {
			res.Failed = append(res.Failed, RowError{
				Row:       rowNum,
				StudentID: in.StudentID,
				Error:     describe(err),
			})
			im.logger.Debug("import row rejected", "row", rowNum, "student_id", in.StudentID, "error", err)
			continue
		}
		res.Imported++
	}

	im.logger.Info("student import finished", "imported", res.Imported, "failed", len(res.Failed))
	return res, nil
}

func readRows(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidWorkbook, err)
	}
	defer f.Close() //nolint:errcheck // read-only workbook

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, ErrNoSheets
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: reading sheet %q: %w", ErrInvalidWorkbook, sheet, err)
	}
	return rows, nil
}

// columns holds the cell index of each field, -1 when absent.
type columns struct {
	id, name, image, qr int
}

var positional = columns{id: 0, name: 1, image: 2, qr: 3}

// detectColumns inspects the first row. It returns the column layout and
// the index of the first data row.
func detectColumns(rows [][]string) (columns, int) {
	if len(rows) == 0 {
		return positional, 0
	}

	cols := columns{id: -1, name: -1, image: -1, qr: -1}
	for i, cell := range rows[0] {
		switch normalise(cell) {
		case "studentid":
			cols.id = i
		case "name":
			cols.name = i
		case "profileimage":
			cols.image = i
		case "qrcode":
			cols.qr = i
		}
	}

	if cols.id < 0 {
		return positional, 0
	}
	return cols, 1
}

func normalise(header string) string {
	h := strings.ToLower(strings.TrimSpace(header))
	return strings.NewReplacer("_", "", " ", "", "-", "").Replace(h)
}

func (c columns) student(row []string) student.Student {
	return student.Student{
		StudentID:    cell(row, c.id),
		Name:         cell(row, c.name),
		ProfileImage: cell(row, c.image),
		QRCode:       cell(row, c.qr),
	}
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// describe turns a Create error into the message reported for the row.
// Store details are not exposed.
func describe(err error) string {
	switch {
	case errors.Is(err, student.ErrValidation):
		var ve *student.ValidationError
		if errors.As(err, &ve) {
			return ve.Error()
		}
		return err.Error()
	case errors.Is(err, student.ErrIntegrity):
		return "student_id already exists"
	case errors.Is(err, student.ErrTransient):
		return "store unavailable"
	default:
		return "import failed"
	}
}
