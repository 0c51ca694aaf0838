package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"go.alis.build/alog"

	"github.com/vogtb/go-spreadsheet/packages/calc"
)

func main() {
	bookPath := flag.String("f", "", "Path to a YAML workbook to recalculate")
	formula := flag.String("e", "", "Evaluate a single formula against an empty sheet")
	modeName := flag.String("mode", "EXCEL", "Compatibility mode: EXCEL, OPENOFFICE or GNUMERIC")
	workers := flag.Int("workers", 0, "Cells evaluated concurrently (default GOMAXPROCS)")
	verbose := flag.Bool("v", false, "Log every evaluation step")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "calc - spreadsheet formula calculator\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  calc -f book.yaml [-mode GNUMERIC]\n")
		fmt.Fprintf(os.Stderr, "  calc -e '=SUM(1,2,3)'\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	ctx := context.Background()
	if *verbose {
		alog.SetLevel(alog.LevelDebug)
	} else {
		alog.SetLevel(alog.LevelWarning)
	}

	if (*bookPath == "") == (*formula == "") {
		fmt.Fprintln(os.Stderr, "Error: exactly one of -f or -e is required")
		flag.Usage()
		os.Exit(1)
	}

	mode, err := calc.ParseCompatibilityMode(*modeName)
	if err != nil {
		fatalf(ctx, "%v", err)
	}

	if *formula != "" {
		if err := evaluate(ctx, os.Stdout, *formula, mode, *workers); err != nil {
			fatalf(ctx, "%v", err)
		}
		return
	}
	if err := recalculate(ctx, os.Stdout, *bookPath, mode, *workers); err != nil {
		fatalf(ctx, "%v", err)
	}
}

func evaluate(ctx context.Context, w io.Writer, formula string, mode calc.CompatibilityMode, workers int) error {
	wb := calc.NewWorkbook(mode)
	if _, err := wb.AddSheet("Sheet1"); err != nil {
		return err
	}
	engine, err := calc.NewEngine(wb, calc.WithWorkers(workers))
	if err != nil {
		return err
	}
	v, err := engine.Evaluate(ctx, formula, calc.Cell(0, 0), mode)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, calc.FormatValue(v))
	return err
}

func recalculate(ctx context.Context, w io.Writer, path string, mode calc.CompatibilityMode, workers int) error {
	wb, err := loadBook(path, mode)
	if err != nil {
		return err
	}
	engine, err := calc.NewEngine(wb, calc.WithWorkers(workers))
	if err != nil {
		return err
	}
	results, err := engine.Recalculate(ctx, wb)
	if err != nil {
		return err
	}
	for ref, v := range results.All() {
		if _, err := fmt.Fprintf(w, "%s\t%s\n", ref, calc.FormatValue(v)); err != nil {
			return err
		}
	}
	return nil
}

func fatalf(ctx context.Context, format string, args ...any) {
	alog.Errorf(ctx, format, args...)
	os.Exit(1)
}
