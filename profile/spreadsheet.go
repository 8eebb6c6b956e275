package profile

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// Sheet names in the vendor spreadsheet.
const (
	TypesSheet    = "Types"
	MessagesSheet = "Messages"
)

// Load reads the vendor profile spreadsheet and builds a catalogue from its
// Types and Messages sheets.
func Load(path string) (*Profile, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open profile spreadsheet: %w", err)
	}
	defer f.Close()

	types, err := f.GetRows(TypesSheet)
	if err != nil {
		return nil, fmt.Errorf("read %s sheet: %w", TypesSheet, err)
	}
	messages, err := f.GetRows(MessagesSheet)
	if err != nil {
		return nil, fmt.Errorf("read %s sheet: %w", MessagesSheet, err)
	}
	p, err := Build(types, messages)
	if err != nil {
		return nil, fmt.Errorf("build profile from %s: %w", path, err)
	}
	return p, nil
}
