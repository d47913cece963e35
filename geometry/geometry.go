// Package geometry catalogs the standard Atari floppy geometries named in
// spec.md §4.4 and §4.8 (the sizes image.Format and the mount recognizer use
// for ATR/XFD), the same way the teacher's disks package catalogs generic
// floppy formats.
package geometry

import (
	_ "embed"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
)

// DiskGeometry describes one standard Atari disk layout.
type DiskGeometry struct {
	Slug            string `csv:"slug"`
	Name            string `csv:"name"`
	Sides           uint   `csv:"sides"`
	Density         byte   `csv:"density"`
	Tracks          uint   `csv:"tracks"`
	SectorsPerTrack uint   `csv:"sectors_per_track"`
	SectorSize      uint32 `csv:"sector_size"`
	TotalSizeBytes  int64  `csv:"total_size_bytes"`
}

// SectorCount returns the number of addressable sectors in this geometry.
func (g DiskGeometry) SectorCount() uint {
	return g.Sides * g.Tracks * g.SectorsPerTrack
}

//go:embed disk-geometries.csv
var rawCSV string

var bySlug map[string]DiskGeometry
var bySize map[int64]DiskGeometry

func init() {
	bySlug = make(map[string]DiskGeometry)
	bySize = make(map[int64]DiskGeometry)

	err := gocsv.UnmarshalToCallback(strings.NewReader(rawCSV), func(row DiskGeometry) error {
		if _, exists := bySlug[row.Slug]; exists {
			return fmt.Errorf("duplicate disk geometry slug %q", row.Slug)
		}
		bySlug[row.Slug] = row
		bySize[row.TotalSizeBytes] = row
		return nil
	})
	if err != nil && err != io.EOF {
		panic(err)
	}
}

// BySlug looks up a predefined geometry by its short identifier (e.g.
// "ss-sd-40").
func BySlug(slug string) (DiskGeometry, error) {
	g, ok := bySlug[slug]
	if !ok {
		return DiskGeometry{}, fmt.Errorf("no predefined disk geometry with slug %q", slug)
	}
	return g, nil
}

// BySize looks up a predefined geometry by its exact total image size in
// bytes. The image package does not call it: its XFD recognizer and Format
// use the size constants in image/sizes.go.
func BySize(totalSizeBytes int64) (DiskGeometry, error) {
	g, ok := bySize[totalSizeBytes]
	if !ok {
		return DiskGeometry{}, fmt.Errorf("no predefined disk geometry of size %d bytes", totalSizeBytes)
	}
	return g, nil
}
