package document

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// LocalService implements Service on the filesystem: templates are plain
// text files with literal {{PLACEHOLDER}} markers, working copies live in a
// scratch directory, and export renders with gofpdf.
type LocalService struct {
	templateDir string
	workDir     string
}

func NewLocalService(templateDir, workDir string) (*LocalService, error) {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("error creating document work dir: %w", err)
	}
	return &LocalService{templateDir: templateDir, workDir: workDir}, nil
}

func (s *LocalService) CopyTemplate(ctx context.Context, templateName, workingName string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.templateDir, templateName))
	if err != nil {
		return "", fmt.Errorf("error reading template %s: %w", templateName, err)
	}

	docRef := filepath.Join(s.workDir, workingName+".txt")
	if err := os.WriteFile(docRef, data, 0o644); err != nil {
		return "", fmt.Errorf("error writing working copy: %w", err)
	}
	return docRef, nil
}

func (s *LocalService) MergeFields(ctx context.Context, docRef string, fields map[string]string) error {
	data, err := os.ReadFile(docRef)
	if err != nil {
		return fmt.Errorf("error reading working copy: %w", err)
	}

	text := string(data)
	for marker, value := range fields {
		text = strings.ReplaceAll(text, marker, value)
	}

	if err := os.WriteFile(docRef, []byte(text), 0o644); err != nil {
		return fmt.Errorf("error writing merged copy: %w", err)
	}
	return nil
}

// ExportPDF renders the merged text line by line onto an A4 landscape page.
func (s *LocalService) ExportPDF(ctx context.Context, docRef string) ([]byte, error) {
	data, err := os.ReadFile(docRef)
	if err != nil {
		return nil, fmt.Errorf("error reading working copy: %w", err)
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "", 14)

	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	for i, line := range lines {
		if i == 0 {
			pdf.SetFont("Arial", "B", 24)
		} else {
			pdf.SetFont("Arial", "", 14)
		}
		pdf.CellFormat(0, 12, line, "", 1, "C", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("error exporting PDF: %w", err)
	}
	return buf.Bytes(), nil
}
