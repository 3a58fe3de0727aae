package main

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/xopen"
)

// Location of the barcode list inside an alevin-fry output directory.
var barcodeListPath = filepath.Join("alevin", "quants_mat_rows.txt")

const sampleColumn = "samples"

// Column names the mapping table is read with, whatever its own header
// says. Rows must have exactly this many fields.
var mappingColumns = [3]string{"oligoDt", "randomP", sampleColumn}

// BarcodeRecord is one row of the alevin-fry barcode list.
type BarcodeRecord struct {
	Barcode string
}

// SampleMappingEntry is one data row of the mapping table.
type SampleMappingEntry struct {
	PrimaryKey     string // first ligated barcode
	SecondaryField string // random primer, only read
	SampleName     string
}

type mappingOptions struct {
	strict bool
}

// openInput opens path for reading, plain or gzipped.
// A missing file is reported as a MissingInputError.
func openInput(what, path string) (*xopen.Reader, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, &MissingInputError{What: what, Path: path}
		}
		return nil, false, err
	}
	if info.IsDir() {
		return nil, false, &MissingInputError{What: what, Path: path}
	}
	if info.Size() == 0 {
		return nil, true, nil
	}
	r, err := xopen.Ropen(path)
	if err != nil {
		return nil, false, fmt.Errorf("open %s: %w", path, err)
	}
	return r, false, nil
}

func newLineScanner(r *xopen.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	return scanner
}

func loadBarcodeList(quantDir string) ([]BarcodeRecord, error) {
	path := filepath.Join(quantDir, barcodeListPath)
	r, empty, err := openInput("barcode list", path)
	if err != nil {
		return nil, err
	}
	if empty {
		return nil, nil
	}
	defer r.Close()

	var records []BarcodeRecord
	scanner := newLineScanner(r)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		records = append(records, BarcodeRecord{Barcode: strings.TrimSpace(line)})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return records, nil
}

// splitMappingLine splits on tabs when the line has any, on whitespace
// runs otherwise.
func splitMappingLine(line string) []string {
	if strings.Contains(line, "\t") {
		return strings.Split(line, "\t")
	}
	return strings.Fields(line)
}

func loadMappingTable(mappingDir, mappingFile string, opts mappingOptions) ([]SampleMappingEntry, error) {
	path := filepath.Join(mappingDir, mappingFile)
	r, empty, err := openInput("mapping file", path)
	if err != nil {
		return nil, err
	}
	if empty {
		return nil, &SchemaError{Path: path, Reason: "file is empty, expected a header line"}
	}
	defer r.Close()

	var (
		entries   []SampleMappingEntry
		lineNo    int
		sawHeader bool
	)
	scanner := newLineScanner(r)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if !sawHeader {
			sawHeader = true
			if opts.strict {
				if err := checkMappingHeader(path, splitMappingLine(line)); err != nil {
					return nil, err
				}
			}
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := splitMappingLine(line)
		if len(fields) != len(mappingColumns) {
			return nil, &SchemaError{
				Path:   path,
				Line:   lineNo,
				Reason: fmt.Sprintf("expected %d columns, found %d", len(mappingColumns), len(fields)),
			}
		}
		entry := SampleMappingEntry{
			PrimaryKey:     strings.TrimSpace(fields[0]),
			SecondaryField: strings.TrimSpace(fields[1]),
			SampleName:     strings.TrimSpace(fields[2]),
		}
		if opts.strict {
			if err := seq.DNAredundant.IsValid([]byte(entry.PrimaryKey)); err != nil {
				return nil, &SchemaError{
					Path:   path,
					Line:   lineNo,
					Reason: fmt.Sprintf("key %q is not a DNA sequence: %v", entry.PrimaryKey, err),
				}
			}
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if !sawHeader {
		return nil, &SchemaError{Path: path, Reason: "missing header line"}
	}
	return entries, nil
}

// checkMappingHeader only runs in strict mode; otherwise the header line is
// skipped unread, so column names may contain spaces.
func checkMappingHeader(path string, header []string) error {
	if len(header) != len(mappingColumns) {
		return &SchemaError{
			Path:   path,
			Line:   1,
			Reason: fmt.Sprintf("expected %d header columns, found %d", len(mappingColumns), len(header)),
		}
	}
	if name := strings.TrimSpace(header[2]); name != sampleColumn {
		return &SchemaError{
			Path:   path,
			Line:   1,
			Reason: fmt.Sprintf("third column must be named %q, found %q", sampleColumn, name),
		}
	}
	return nil
}
