package payload

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	pkgerrors "github.com/pkg/errors"

	"github.com/nijaru/vidsum/errors"
	"github.com/nijaru/vidsum/models"
)

// Model outputs can be long; a single line may exceed bufio's default.
const maxLineSize = 16 << 20

// LineError is a per-line parse failure. It never aborts decoding.
type LineError struct {
	Source string `json:"source"`
	Line   int    `json:"line"`
	Err    error  `json:"-"`
}

func (e *LineError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.Source, e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// Encode writes one JSON object per line in slice order.
func Encode(w io.Writer, records []models.Record) error {
	const op = "payload.Encode"

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for i := range records {
		if err := enc.Encode(&records[i]); err != nil {
			return errors.Internal(op, pkgerrors.Wrapf(err, "record %s", records[i].ID), "failed to encode record")
		}
	}
	return nil
}

// Decode parses every line independently. Blank lines are skipped; lines
// that are not valid records, or are longer than maxLineSize, are returned
// as LineErrors and decoding carries on with the next line.
func Decode(r io.Reader, source string) ([]models.Record, []*LineError) {
	const op = "payload.Decode"

	var (
		records []models.Record
		lineErr []*LineError
	)

	reader := bufio.NewReaderSize(r, 64*1024)
	line := 0
	for {
		raw, oversized, err := readLine(reader, maxLineSize)
		line++

		switch {
		case oversized:
			lineErr = append(lineErr, &LineError{Source: source, Line: line,
				Err: errors.Data(op, nil, fmt.Sprintf("line exceeds %d bytes", maxLineSize))})
		case len(bytes.TrimSpace(raw)) > 0:
			var rec models.Record
			if uerr := json.Unmarshal(bytes.TrimSpace(raw), &rec); uerr != nil {
				lineErr = append(lineErr, &LineError{Source: source, Line: line, Err: errors.Data(op, uerr, "malformed record")})
			} else if rec.ID == "" {
				lineErr = append(lineErr, &LineError{Source: source, Line: line, Err: errors.Data(op, nil, "record has no recordId")})
			} else {
				records = append(records, rec)
			}
		}

		if err == io.EOF {
			break
		}
		if err != nil {
			lineErr = append(lineErr, &LineError{Source: source, Line: line, Err: errors.Data(op, err, "failed to read remaining lines")})
			break
		}
	}

	return records, lineErr
}

// readLine returns the next line including any trailing newline. Bytes past
// limit are read and discarded so the following line starts cleanly.
func readLine(r *bufio.Reader, limit int) ([]byte, bool, error) {
	var (
		buf []byte
		n   int
	)
	for {
		chunk, err := r.ReadSlice('\n')
		n += len(chunk)
		if n <= limit+1 {
			buf = append(buf, chunk...)
		}
		if err == bufio.ErrBufferFull {
			continue
		}

		size := n
		if err == nil {
			size--
		}
		if size > limit {
			return nil, true, err
		}
		return buf, false, err
	}
}
