package main

import (
	"compress/gzip"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func writeBarcodeList(t *testing.T, quantDir, content string) {
	t.Helper()
	writeFixture(t, filepath.Join(quantDir, "alevin", "quants_mat_rows.txt"), content)
}

func TestLoadBarcodeList(t *testing.T) {
	dir := t.TempDir()
	writeBarcodeList(t, dir, "XXXXXXXXAAAAAAAA\r\n\nXXXXXXXXBBBBBBBB\nXXXXXXXXZZZZZZZZ")

	got, err := loadBarcodeList(dir)
	require.NoError(t, err)
	assert.Equal(t, scenarioBarcodes(), got)
}

func TestLoadBarcodeListGzip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "alevin", "quants_mat_rows.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte("XXXXXXXXAAAAAAAA\nXXXXXXXXBBBBBBBB\nXXXXXXXXZZZZZZZZ\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	got, err := loadBarcodeList(dir)
	require.NoError(t, err)
	assert.Equal(t, scenarioBarcodes(), got)
}

func TestLoadBarcodeListEmpty(t *testing.T) {
	dir := t.TempDir()
	writeBarcodeList(t, dir, "")

	got, err := loadBarcodeList(dir)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLoadBarcodeListMissing(t *testing.T) {
	_, err := loadBarcodeList(filepath.Join(t.TempDir(), "nope"))

	var missing *MissingInputError
	require.True(t, errors.As(err, &missing), "got %v", err)
	assert.Equal(t, "barcode list", missing.What)
}

func TestLoadMappingTable(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"tabs", "oligoDt\trandomP\tsamples\nAAAAAAAA\trp1\tsample1\nBBBBBBBB\trp2\tsample2\n"},
		{"whitespace", "oligoDt randomP samples\nAAAAAAAA   rp1 sample1\n\n  BBBBBBBB rp2 sample2  \n"},
		{"crlf", "oligoDt\trandomP\tsamples\r\nAAAAAAAA\trp1\tsample1\r\nBBBBBBBB\trp2\tsample2\r\n"},
		{"other header", "bc1\tbc2\tdemultiplexing\nAAAAAAAA\trp1\tsample1\nBBBBBBBB\trp2\tsample2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFixture(t, filepath.Join(dir, "map.txt"), tt.content)

			got, err := loadMappingTable(dir, "map.txt", mappingOptions{})
			require.NoError(t, err)
			assert.Equal(t, scenarioMapping(), got)
		})
	}
}

func TestLoadMappingTableEmptySample(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, filepath.Join(dir, "map.txt"), "a\tb\tsamples\nAAAAAAAA\trp1\t\n")

	got, err := loadMappingTable(dir, "map.txt", mappingOptions{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "", got[0].SampleName)
}

func TestLoadMappingTableSchemaErrors(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		strict   bool
		wantLine int
	}{
		{"two columns", "oligoDt\tsamples\nAAAAAAAA\tsample1\n", false, 2},
		{"strict two column header", "oligoDt\tsamples\nAAAAAAAA\trp1\tsample1\n", true, 1},
		{"two column rows", "oligoDt\trandomP\tsamples\nAAAAAAAA\tsample1\n", false, 2},
		{"four columns", "a\tb\tc\nAAAAAAAA\trp1\tsample1\textra\n", false, 2},
		{"empty file", "", false, 0},
		{"strict header", "a\tb\tdemultiplexing\nAAAAAAAA\trp1\tsample1\n", true, 1},
		{"strict key", "a\tb\tsamples\nAAAAAAAA\trp1\tsample1\nNOT-DNA!\trp2\tsample2\n", true, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFixture(t, filepath.Join(dir, "map.txt"), tt.content)

			_, err := loadMappingTable(dir, "map.txt", mappingOptions{strict: tt.strict})
			var schemaErr *SchemaError
			require.True(t, errors.As(err, &schemaErr), "got %v", err)
			assert.Equal(t, tt.wantLine, schemaErr.Line)
		})
	}
}

func TestLoadMappingTableSkipsHeader(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"spaces in names", "oligo dT barcode  random primer  samples"},
		{"tabs and spaces", "oligo dT barcode\trandom primer\tsample name\textra"},
		{"single name", "mapping"},
		{"blank", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFixture(t, filepath.Join(dir, "map.txt"), tt.header+"\nAAAAAAAA rp1 sample1\nBBBBBBBB\trp2\tsample2\n")

			got, err := loadMappingTable(dir, "map.txt", mappingOptions{})
			require.NoError(t, err)
			assert.Equal(t, scenarioMapping(), got)
		})
	}
}

func TestLoadMappingTableStrictAccepts(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, filepath.Join(dir, "map.txt"), "oligoDt\trandomP\tsamples\nACGTACGT\trp1\tsample1\n")

	got, err := loadMappingTable(dir, "map.txt", mappingOptions{strict: true})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ACGTACGT", got[0].PrimaryKey)
}

func TestLoadMappingTableMissing(t *testing.T) {
	_, err := loadMappingTable(t.TempDir(), "absent.txt", mappingOptions{})

	var missing *MissingInputError
	require.True(t, errors.As(err, &missing), "got %v", err)
	assert.Equal(t, "mapping file", missing.What)
}
