package faidx

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// faiRecord describes one sequence in a .fai record-offset index.
//
// Offsets are byte positions in the uncompressed FASTA text. LineBases is
// the number of sequence symbols per line, LineWidth the number of bytes
// per line including the terminator.
type faiRecord struct {
	Name      string
	Length    int
	Offset    int64
	LineBases int
	LineWidth int
}

// parseFai reads the five-column tab-separated .fai format.
func parseFai(r io.Reader) (map[string]faiRecord, error) {
	records := make(map[string]faiRecord)

	sc := bufio.NewScanner(r)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimRight(sc.Text(), "\r")
		if text == "" {
			continue
		}
		fields := strings.Split(text, "\t")
		if len(fields) < 5 {
			return nil, fmt.Errorf("line %d: expected 5 columns, got %d", line, len(fields))
		}

		rec := faiRecord{Name: fields[0]}
		var err error
		if rec.Length, err = strconv.Atoi(fields[1]); err != nil {
			return nil, fmt.Errorf("line %d: length: %w", line, err)
		}
		if rec.Offset, err = strconv.ParseInt(fields[2], 10, 64); err != nil {
			return nil, fmt.Errorf("line %d: offset: %w", line, err)
		}
		if rec.LineBases, err = strconv.Atoi(fields[3]); err != nil {
			return nil, fmt.Errorf("line %d: line bases: %w", line, err)
		}
		if rec.LineWidth, err = strconv.Atoi(fields[4]); err != nil {
			return nil, fmt.Errorf("line %d: line width: %w", line, err)
		}
		if rec.LineBases <= 0 || rec.LineWidth < rec.LineBases {
			return nil, fmt.Errorf("line %d: invalid line geometry %d/%d", line, rec.LineBases, rec.LineWidth)
		}

		records[rec.Name] = rec
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	return records, nil
}
