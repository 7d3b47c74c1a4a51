package atolabels

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/model"
)

// FileName is the chart file written by `taxprep init`.
const FileName = "ato-labels.csv"

// Service provides in-memory lookup over the ATO label chart.
type Service struct {
	labels []model.ATOLabel
	byCode map[string]model.ATOLabel
}

// NewService creates a Service from a slice of labels.
func NewService(labels []model.ATOLabel) *Service {
	byCode := make(map[string]model.ATOLabel, len(labels))
	for _, l := range labels {
		byCode[l.Code] = l
	}
	return &Service{labels: labels, byCode: byCode}
}

// Load reads ato-labels.csv from dir.
func Load(dir string) (*Service, error) {
	f, err := os.Open(filepath.Join(dir, FileName))
	if err != nil {
		return nil, fmt.Errorf("opening label chart: %w", err)
	}
	defer f.Close()

	labels, err := ReadLabels(f)
	if err != nil {
		return nil, fmt.Errorf("reading label chart: %w", err)
	}
	return NewService(labels), nil
}

// LoadOrDefault reads ato-labels.csv from dir, falling back to DefaultChart
// when the file does not exist.
func LoadOrDefault(dir string) (*Service, error) {
	svc, err := Load(dir)
	if err == nil {
		return svc, nil
	}
	if _, statErr := os.Stat(filepath.Join(dir, FileName)); os.IsNotExist(statErr) {
		return NewService(DefaultChart()), nil
	}
	return nil, err
}

// All returns all labels.
func (s *Service) All() []model.ATOLabel {
	return s.labels
}

// Get returns a label by code.
func (s *Service) Get(code string) (model.ATOLabel, bool) {
	l, ok := s.byCode[code]
	return l, ok
}

// Exists reports whether a label code exists.
func (s *Service) Exists(code string) bool {
	_, ok := s.byCode[code]
	return ok
}

// Name returns the label's name, or the code itself when unknown.
func (s *Service) Name(code string) string {
	if l, ok := s.byCode[code]; ok {
		return l.Name
	}
	return code
}

// ByKind returns all labels of the given kind.
func (s *Service) ByKind(kind model.LabelKind) []model.ATOLabel {
	var result []model.ATOLabel
	for _, l := range s.labels {
		if l.Kind == kind {
			result = append(result, l)
		}
	}
	return result
}

// Save writes the chart to <dir>/ato-labels.csv.
func (s *Service) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating label dir: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, FileName))
	if err != nil {
		return fmt.Errorf("creating label chart file: %w", err)
	}
	defer f.Close()

	if err := WriteLabels(f, s.labels); err != nil {
		return fmt.Errorf("writing label chart: %w", err)
	}
	return nil
}
