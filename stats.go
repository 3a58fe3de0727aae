package main

import (
	"github.com/shenwei356/bio/seq"
)

// Stats summarises one run. Counts are taken before filtering.
type Stats struct {
	Total     int            `json:"total"`
	Matched   int            `json:"matched"`
	Other     int            `json:"other"`
	Short     int            `json:"short"`    // barcodes shorter than the key length
	NonDNA    int            `json:"non_dna"`  // keys with characters outside IUPAC DNA
	Written   int            `json:"written"`  // rows in the output table
	PerSample map[string]int `json:"per_sample"`
}

func summarize(records []OutputRecord, keyLength int) Stats {
	stats := Stats{PerSample: make(map[string]int)}
	for _, r := range records {
		stats.Total++
		if barcodeLen(r.Barcode) < keyLength {
			stats.Short++
		}
		if seq.DNAredundant.IsValid([]byte(r.Key)) != nil {
			stats.NonDNA++
		}
		if r.SampleName == otherSample {
			stats.Other++
		} else {
			stats.Matched++
		}
		stats.PerSample[r.SampleName]++
	}
	return stats
}
