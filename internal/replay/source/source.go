// Package source reads numeric records from delimited text files.
package source

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Record is one parsed row of numeric fields.
type Record []float64

// Options controls how a delimited source is read.
type Options struct {
	// Delimiter separates fields on a line. Defaults to ','.
	Delimiter rune
	// HeaderLines is the number of leading lines skipped without parsing.
	HeaderLines int
}

// ParseError reports a line that could not be turned into a Record.
type ParseError struct {
	Line   int    // 1-based physical line
	Column int    // 1-based field index, 0 when the line itself is malformed
	Value  string // offending field text
	Err    error
}

func (e *ParseError) Error() string {
	if e.Column == 0 {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("line %d, field %d: cannot parse %q as a number: %v", e.Line, e.Column, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Reader yields Records one line at a time.
type Reader struct {
	closer io.Closer
	csv    *csv.Reader

	// skipped is the number of header lines actually consumed.
	skipped int
	line    int
}

// Open opens path and prepares a Reader over it. The caller must Close it.
func Open(path string, opts Options) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open source: %w", err)
	}

	r, err := NewReader(f, opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// NewReader wraps an already open stream.
func NewReader(in io.Reader, opts Options) (*Reader, error) {
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	if opts.HeaderLines < 0 {
		return nil, fmt.Errorf("header line count cannot be negative: %d", opts.HeaderLines)
	}
	if !validDelimiter(opts.Delimiter) {
		return nil, fmt.Errorf("invalid delimiter %q", opts.Delimiter)
	}

	br := bufio.NewReader(in)
	skipped, err := skipLines(br, opts.HeaderLines)
	if err != nil {
		return nil, fmt.Errorf("failed to skip header: %w", err)
	}

	cr := csv.NewReader(br)
	cr.Comma = opts.Delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = opts.Delimiter != ' ' && opts.Delimiter != '\t'
	cr.ReuseRecord = true

	return &Reader{
		csv:     cr,
		skipped: skipped,
	}, nil
}

// validDelimiter mirrors the restrictions of encoding/csv.
func validDelimiter(r rune) bool {
	return r != 0 && r != '"' && r != '\r' && r != '\n' && utf8.ValidRune(r) && r != utf8.RuneError
}

func skipLines(br *bufio.Reader, n int) (int, error) {
	for i := 0; i < n; i++ {
		if _, err := br.ReadSlice('\n'); err != nil {
			if errors.Is(err, bufio.ErrBufferFull) {
				// Long header line: keep draining it.
				i--
				continue
			}
			if errors.Is(err, io.EOF) {
				return i, nil
			}
			return i, err
		}
	}
	return n, nil
}

// Next returns the next record, io.EOF when the source is exhausted, or a
// *ParseError when a line contains a non-numeric field.
func (r *Reader) Next() (Record, error) {
	fields, err := r.csv.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		var csvErr *csv.ParseError
		if errors.As(err, &csvErr) {
			r.line = r.skipped + csvErr.StartLine
			return nil, &ParseError{Line: r.line, Err: csvErr.Err}
		}
		return nil, err
	}

	line, _ := r.csv.FieldPos(0)
	r.line = r.skipped + line

	rec := make(Record, len(fields))
	for i, field := range fields {
		v, err := parseNumber(field)
		if err != nil {
			return nil, &ParseError{
				Line:   r.line,
				Column: i + 1,
				Value:  field,
				Err:    unwrapNumError(err),
			}
		}
		rec[i] = v
	}
	return rec, nil
}

// parseNumber parses a decimal field. Values beyond float64 range
// saturate to ±Inf or 0 rather than failing. Hexadecimal floats and
// underscore digit separators are rejected.
func parseNumber(field string) (float64, error) {
	s := strings.TrimSpace(field)
	digits := strings.TrimLeft(s, "+-")
	if len(digits) > 1 && digits[0] == '0' && (digits[1] == 'x' || digits[1] == 'X') {
		return 0, strconv.ErrSyntax
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil && errors.Is(err, strconv.ErrRange) {
		return v, nil
	}
	return v, err
}

func unwrapNumError(err error) error {
	var numErr *strconv.NumError
	if errors.As(err, &numErr) {
		return numErr.Err
	}
	return err
}

// Line returns the physical line number of the last record returned.
func (r *Reader) Line() int {
	return r.line
}

// HeaderLinesSkipped returns how many header lines were consumed. It is
// lower than the configured count when the source is shorter than the header.
func (r *Reader) HeaderLinesSkipped() int {
	return r.skipped
}

// Close releases the underlying file, if any.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}
