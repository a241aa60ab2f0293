// Package csvio holds the CSV read/write plumbing shared by every stage.
// Column order is a contract (spec.md §9): callers always pass the header
// explicitly and this package never reorders or infers it.
package csvio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"os"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
)

// Writer wraps encoding/csv with the MINIMAL-quoting, Unix-newline rules
// spec.md §6 requires: double-quote escaping, embedded newlines permitted
// inside quotes, no forced quoting of fields that don't need it.
type Writer struct {
	f *os.File
	w *csv.Writer
}

// Create opens path for writing and writes the header row immediately.
func Create(path string, header []string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, eris.Wrapf(err, "csvio: create %s", path)
	}
	w := csv.NewWriter(f)
	w.UseCRLF = false
	if err := w.Write(header); err != nil {
		_ = f.Close()
		return nil, eris.Wrapf(err, "csvio: write header %s", path)
	}
	return &Writer{f: f, w: w}, nil
}

// WriteRow writes a single record.
func (cw *Writer) WriteRow(record []string) error {
	if err := cw.w.Write(record); err != nil {
		return eris.Wrap(err, "csvio: write row")
	}
	return nil
}

// Close flushes buffered output, fsyncs, and closes the underlying file.
// Stage boundaries are synchronous (spec.md §5): downstream stages must
// not observe a file until it is fully flushed to disk.
func (cw *Writer) Close() error {
	cw.w.Flush()
	if err := cw.w.Error(); err != nil {
		_ = cw.f.Close()
		return eris.Wrap(err, "csvio: flush")
	}
	if err := cw.f.Sync(); err != nil {
		_ = cw.f.Close()
		return eris.Wrap(err, "csvio: fsync")
	}
	return eris.Wrap(cw.f.Close(), "csvio: close")
}

// StreamRows reads path as CSV and sends each data row (header excluded)
// to a channel. Both channels are closed when processing completes.
func StreamRows(ctx context.Context, path string) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		f, err := os.Open(path)
		if err != nil {
			errCh <- eris.Wrapf(err, "csvio: open %s", path)
			return
		}
		defer f.Close() //nolint:errcheck

		r := csv.NewReader(bufio.NewReader(f))
		r.FieldsPerRecord = -1

		first := true
		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csvio: context cancelled")
				return
			}

			record, err := r.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrapf(err, "csvio: read row from %s", path)
				return
			}

			if first {
				first = false
				continue // skip header
			}

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csvio: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// ReadHeader returns the header row of a CSV file without consuming the
// rest of the file's rows. Returns (nil, nil) if the file is empty.
func ReadHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "csvio: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(bufio.NewReader(f))
	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "csvio: read header %s", path)
	}
	return header, nil
}

// AppendWriter writes additional rows onto an already-open file handle
// positioned at EOF (os.O_APPEND), without touching the header. Used by
// OutputMerger to append new rows onto the master CSV.
type AppendWriter struct {
	f *os.File
	w *csv.Writer
}

// NewAppendWriter wraps f for row-at-a-time CSV appends.
func NewAppendWriter(f *os.File) *AppendWriter {
	w := csv.NewWriter(f)
	w.UseCRLF = false
	return &AppendWriter{f: f, w: w}
}

// WriteRow appends a single record.
func (aw *AppendWriter) WriteRow(record []string) error {
	if err := aw.w.Write(record); err != nil {
		return eris.Wrap(err, "csvio: append row")
	}
	return nil
}

// Close flushes and fsyncs without closing the underlying file, which the
// caller owns.
func (aw *AppendWriter) Close() error {
	aw.w.Flush()
	if err := aw.w.Error(); err != nil {
		return eris.Wrap(err, "csvio: flush append")
	}
	return eris.Wrap(aw.f.Sync(), "csvio: fsync append")
}

// UnmarshalFile decodes every row of a CSV file into a slice of T using
// struct `csv:"..."` tags (github.com/jszwec/csvutil), matching columns by
// header name rather than position. Used by BrochureCatalog,
// BrochureFetcher, OutputMerger and the pipeline's download tally to read a
// predecessor stage's file back into typed rows.
func UnmarshalFile[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "csvio: read %s", path)
	}

	r := csv.NewReader(bufio.NewReader(bytes.NewReader(data)))
	r.FieldsPerRecord = -1

	dec, err := csvutil.NewDecoder(r)
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "csvio: new decoder %s", path)
	}

	var out []T
	for {
		var row T
		if err := dec.Decode(&row); err != nil {
			if err == io.EOF {
				break
			}
			return nil, eris.Wrapf(err, "csvio: decode row %s", path)
		}
		out = append(out, row)
	}
	return out, nil
}
