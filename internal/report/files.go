package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/analysis"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/classifier"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/fy"
)

// Paths are the files written for one financial year.
type Paths struct {
	Markdown   string
	Classified string
	Merchants  string
}

// FileNames returns the output file names for a financial year.
func FileNames(endYear int) Paths {
	label := fy.Format(endYear)
	return Paths{
		Markdown:   "tax-submission-" + label + ".md",
		Classified: "classified-transactions-" + label + ".csv",
		Merchants:  "merchant-intelligence-" + label + ".csv",
	}
}

// NewPack builds the submission pack for an analysis result.
func NewPack(res *analysis.Result, sourceName string) Pack {
	return Pack{
		SourceName:      sourceName,
		FY:              res.FY,
		Occupation:      res.Options.Occupation,
		Employers:       res.Options.Employers,
		IncludePossible: res.Options.IncludePossible,
		GeneratedAt:     res.GeneratedAt,
		Summary:         res.Summary,
	}
}

// WriteAll writes the Markdown pack and both CSV exports into dir.
// intel may be nil.
func WriteAll(dir string, res *analysis.Result, sourceName string, intel classifier.IntelLookup) (Paths, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("creating output dir: %w", err)
	}

	names := FileNames(res.FY)
	paths := Paths{
		Markdown:   filepath.Join(dir, names.Markdown),
		Classified: filepath.Join(dir, names.Classified),
		Merchants:  filepath.Join(dir, names.Merchants),
	}

	md := Markdown(NewPack(res, sourceName))
	if err := os.WriteFile(paths.Markdown, []byte(md), 0o644); err != nil {
		return Paths{}, fmt.Errorf("writing %s: %w", names.Markdown, err)
	}

	if err := writeCSVFile(paths.Classified, func(f *os.File) error {
		return WriteClassified(f, res.Records, intel)
	}); err != nil {
		return Paths{}, err
	}
	if err := writeCSVFile(paths.Merchants, func(f *os.File) error {
		return WriteMerchants(f, res.Groups, intel)
	}); err != nil {
		return Paths{}, err
	}
	return paths, nil
}

func writeCSVFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Base(path), err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}
