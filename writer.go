package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shenwei356/xopen"
)

// Header of bc_sample_mapping.txt, kept compatible with the downstream
// metadata loaders.
var outputHeader = []string{"barcodes", "to_keep", "samples"}

// RecordWriter writes tab separated rows through a small cache.
// Call Close() when you're done!
type RecordWriter struct {
	writer *xopen.Writer
	cache  []OutputRecord
	err    error
}

// NewRecordWriter creates (or truncates) filename and writes the header.
// A .gz suffix gzips the output.
// cachesize: How many records to buffer at a time
func NewRecordWriter(filename string, cachesize int) (*RecordWriter, error) {
	writer, err := xopen.Wopen(filename)
	if err != nil {
		return nil, err
	}
	if cachesize < 1 {
		cachesize = 1
	}
	w := &RecordWriter{
		writer: writer,
		cache:  make([]OutputRecord, 0, cachesize),
	}
	if _, err := writer.WriteString(strings.Join(outputHeader, "\t") + "\n"); err != nil {
		writer.Close()
		return nil, err
	}
	return w, nil
}

func (w *RecordWriter) Write(record OutputRecord) error {
	if w.err != nil {
		return w.err
	}
	w.cache = append(w.cache, record)
	if cap(w.cache) == len(w.cache) {
		return w.Flush()
	}
	return nil
}

func (w *RecordWriter) Flush() error {
	if w.err != nil {
		return w.err
	}
	for _, r := range w.cache {
		if _, err := fmt.Fprintf(w.writer, "%s\t%s\t%s\n", r.Barcode, r.Key, r.SampleName); err != nil {
			w.err = err
			return err
		}
	}
	w.cache = w.cache[:0] // Empty the slice but keep allocated capacity
	return nil
}

func (w *RecordWriter) Close() error {
	flushErr := w.Flush()
	closeErr := w.writer.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

// writeSampleMapping overwrites path with the header and records.
func writeSampleMapping(path string, records []OutputRecord) error {
	w, err := NewRecordWriter(path, 1024)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	for _, r := range records {
		if err := w.Write(r); err != nil {
			w.Close()
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

func writeStats(path string, stats Stats) error {
	w, err := xopen.Wopen(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(stats); err != nil {
		w.Close()
		return fmt.Errorf("encode stats: %w", err)
	}
	return w.Close()
}
