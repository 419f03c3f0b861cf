package format

import (
	_ "embed"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/shawlson/quickfs"
)

// Preset names a pre-computed image size by the device it mimics, the way
// disks.go's DiskGeometry table names real historical floppy formats.
// QuickFS presets are simpler: there's no track/head/sector geometry to
// derive bytes from, just a block count a caller can hand straight to the
// thing that sizes the backing file before calling Format.
type Preset struct {
	Slug        string `csv:"slug"`
	Description string `csv:"description"`
	TotalBlocks int    `csv:"total_blocks"`
}

// TotalSizeBytes is the backing file size Format expects for this preset.
func (p Preset) TotalSizeBytes() int64 {
	return int64(p.TotalBlocks) * quickfs.BlockSize
}

//go:embed presets.csv
var presetsRawCSV string

var presets map[string]Preset

func init() {
	presets = make(map[string]Preset)
	reader := strings.NewReader(presetsRawCSV)
	err := gocsv.UnmarshalToCallback(reader, func(row Preset) error {
		if _, exists := presets[row.Slug]; exists {
			return fmt.Errorf("duplicate preset slug %q", row.Slug)
		}
		presets[row.Slug] = row
		return nil
	})
	if err != nil && err != io.EOF {
		panic(err)
	}
}

// GetPreset looks up a named image-size preset, e.g. "tiny" or "max".
func GetPreset(slug string) (Preset, error) {
	preset, ok := presets[slug]
	if !ok {
		return Preset{}, fmt.Errorf("no predefined quickfs image size preset named %q", slug)
	}
	return preset, nil
}

// PresetNames returns every known preset slug, for CLI help text.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	return names
}
