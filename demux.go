package main

import (
	"sort"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Label for barcodes whose key is not in the mapping table.
const otherSample = "other"

// OutputRecord is one row of bc_sample_mapping.txt
type OutputRecord struct {
	Barcode    string
	Key        string
	SampleName string
}

// barcodeKey returns the last n characters (runes) of barcode: the first
// ligated barcode sits at the end. Shorter barcodes are their own key.
func barcodeKey(barcode string, n int) string {
	if len(barcode) <= n {
		return barcode
	}
	end := len(barcode)
	for i := 0; i < n && end > 0; i++ {
		_, size := utf8.DecodeLastRuneInString(barcode[:end])
		end -= size
	}
	return barcode[end:]
}

// barcodeLen counts characters the same way barcodeKey does.
func barcodeLen(barcode string) int {
	return utf8.RuneCountInString(barcode)
}

// sampleIndex maps a barcode key to its sample name.
type sampleIndex struct {
	samples    map[string]string
	duplicates []string // keys listed more than once; the first entry won
	conflicts  []string // mismatch variants dropped because two samples claim them
}

func newSampleIndex(entries []SampleMappingEntry, mismatches int) *sampleIndex {
	idx := &sampleIndex{samples: make(map[string]string, len(entries))}

	for _, e := range entries {
		if e.PrimaryKey == "" {
			continue
		}
		if _, seen := idx.samples[e.PrimaryKey]; seen {
			idx.duplicates = append(idx.duplicates, e.PrimaryKey)
			continue
		}
		name := e.SampleName
		if name == "" {
			name = otherSample
		}
		idx.samples[e.PrimaryKey] = name
	}
	idx.applyMismatches(mismatches)
	return idx
}

// applyMismatches adds every variant within distance of a known key.
// Exact keys always keep their own sample.
func (idx *sampleIndex) applyMismatches(distance int) {
	if distance == 0 {
		return
	}
	exact := make([]string, 0, len(idx.samples))
	for bc := range idx.samples {
		exact = append(exact, bc)
	}
	sort.Strings(exact)

	variants := make(map[string]string)
	conflicted := make(map[string]struct{})
	for _, bc := range exact {
		sample := idx.samples[bc]
		for _, newbc := range mismatches(bc, distance) {
			if _, isExact := idx.samples[newbc]; isExact {
				continue
			}
			if prev, claimed := variants[newbc]; claimed && prev != sample {
				conflicted[newbc] = struct{}{}
			}
			variants[newbc] = sample
		}
	}
	for conflict := range conflicted {
		delete(variants, conflict)
		idx.conflicts = append(idx.conflicts, conflict)
	}
	sort.Strings(idx.conflicts)
	for bc, sample := range variants {
		idx.samples[bc] = sample
	}
}

func (idx *sampleIndex) lookup(key string) (string, bool) {
	sample, ok := idx.samples[key]
	return sample, ok
}

// classify left-joins barcodes against idx, one output row per barcode
// in input order.
func classify(barcodes []BarcodeRecord, idx *sampleIndex, keyLength int) []OutputRecord {
	out := make([]OutputRecord, len(barcodes))
	for i, bc := range barcodes {
		key := barcodeKey(bc.Barcode, keyLength)
		sample, ok := idx.lookup(key)
		if !ok {
			sample = otherSample
		}
		out[i] = OutputRecord{Barcode: bc.Barcode, Key: key, SampleName: sample}
	}
	return out
}

// filterUnmatched drops rows labelled other, keeping the order of the rest.
func filterUnmatched(records []OutputRecord) []OutputRecord {
	kept := make([]OutputRecord, 0, len(records))
	for _, r := range records {
		if r.SampleName != otherSample {
			kept = append(kept, r)
		}
	}
	return kept
}

func demux(config *Config, logger *zap.SugaredLogger) ([]OutputRecord, Stats, error) {
	barcodes, err := loadBarcodeList(config.AlevinFryDir)
	if err != nil {
		return nil, Stats{}, err
	}
	logger.Debugw("loaded barcode list", "dir", config.AlevinFryDir, "barcodes", len(barcodes))

	entries, err := loadMappingTable(config.BarcodeMappingDir, config.MappingFile, mappingOptions{strict: config.Strict})
	if err != nil {
		return nil, Stats{}, err
	}
	logger.Debugw("loaded mapping table", "file", config.MappingFile, "entries", len(entries))

	idx := newSampleIndex(entries, config.Mismatches)
	for _, dup := range idx.duplicates {
		logger.Warnw("duplicate key in mapping file, keeping first entry", "key", dup, "sample", idx.samples[dup])
	}
	if len(idx.conflicts) > 0 {
		logger.Warnw("ambiguous mismatch variants dropped", "count", len(idx.conflicts), "mismatches", config.Mismatches)
	}

	records := classify(barcodes, idx, config.KeyLength)
	stats := summarize(records, config.KeyLength)
	if stats.Short > 0 {
		logger.Warnw("barcodes shorter than key length used whole", "count", stats.Short, "key_length", config.KeyLength)
	}
	if config.FilterBarcodes {
		records = filterUnmatched(records)
	}
	return records, stats, nil
}

// mismatches returns input and every string within distance substitutions
// of it, each listed once and in no particular order. Only A, C, G, T and N
// positions are substituted (with the other four of those letters); any
// other character is left as is.
func mismatches(input string, distance int) (out []string) {
	mutations := []rune{'A', 'C', 'G', 'T', 'N'}
	toCheck := []string{input}
	seen := make(map[string]struct{}) // avoid double-counting

	for ; distance >= 0; distance-- {
		nextCheck := make([]string, 0, len(input)*(len(mutations)-1))

		for _, curBC := range toCheck {
			seen[curBC] = struct{}{}
			if distance == 0 {
				continue
			}
			for i, c := range curBC {
				switch c {
				case 'A', 'C', 'G', 'T', 'N':
					for _, replacement := range mutations {
						if replacement == c {
							continue
						}
						newBC := curBC[:i] + string(replacement) + curBC[i+1:]
						if _, alreadySeen := seen[newBC]; !alreadySeen {
							nextCheck = append(nextCheck, newBC)
						}
					}
				default:
					// nothing
				}
			}
		}
		toCheck = nextCheck
	}
	for k := range seen {
		out = append(out, k)
	}
	return out
}
