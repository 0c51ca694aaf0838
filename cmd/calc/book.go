package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vogtb/go-spreadsheet/packages/calc"
)

// bookFile is the YAML layout of a workbook:
//
//	mode: GNUMERIC
//	sheets:
//	  - name: Sheet1
//	    cells:
//	      A1: 2
//	      B1: =A1*10
//	names:
//	  Prices: Sheet1!A1:A3
//	shared:
//	  - master: Sheet1!C1
//	    formula: =A1+B1
//	    targets: [C2, C3]
type bookFile struct {
	Mode   *calc.CompatibilityMode `yaml:"mode"`
	Sheets []sheetFile             `yaml:"sheets"`
	Names  map[string]string       `yaml:"names"`
	Shared []sharedFile            `yaml:"shared"`
}

type sheetFile struct {
	Name  string            `yaml:"name"`
	Cells map[string]string `yaml:"cells"`
}

type sharedFile struct {
	Master  string   `yaml:"master"`
	Formula string   `yaml:"formula"`
	Targets []string `yaml:"targets"`
}

// loadBook reads a workbook file. a mode in the file wins over the flag.
func loadBook(path string, mode calc.CompatibilityMode) (*calc.Workbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var bf bookFile
	if err := yaml.Unmarshal(data, &bf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if bf.Mode != nil {
		mode = *bf.Mode
	}
	return buildBook(bf, mode)
}

func buildBook(bf bookFile, mode calc.CompatibilityMode) (*calc.Workbook, error) {
	wb := calc.NewWorkbook(mode)
	for _, sf := range bf.Sheets {
		if _, err := wb.AddSheet(sf.Name); err != nil {
			return nil, err
		}
	}
	if len(bf.Sheets) == 0 {
		if _, err := wb.AddSheet("Sheet1"); err != nil {
			return nil, err
		}
	}

	for _, sf := range bf.Sheets {
		for addr, input := range sf.Cells {
			ref, err := calc.ParseCellReference(addr)
			if err != nil {
				return nil, err
			}
			if err := wb.Set(ref.WithSheet(sf.Name), input); err != nil {
				return nil, fmt.Errorf("cell %s!%s: %w", sf.Name, addr, err)
			}
		}
	}

	for _, sh := range bf.Shared {
		master, err := calc.ParseCellReference(sh.Master)
		if err != nil {
			return nil, err
		}
		targets := make([]calc.CellReference, len(sh.Targets))
		for i, t := range sh.Targets {
			if targets[i], err = calc.ParseCellReference(t); err != nil {
				return nil, err
			}
		}
		shared := calc.SharedFormula{Master: master, Template: sh.Formula}
		if err := wb.SetShared(shared, targets...); err != nil {
			return nil, fmt.Errorf("shared formula at %s: %w", sh.Master, err)
		}
	}

	for name, addr := range bf.Names {
		r, err := calc.ParseRange(addr)
		if err != nil {
			return nil, err
		}
		if err := wb.DefineName(name, r); err != nil {
			return nil, err
		}
	}
	return wb, nil
}
