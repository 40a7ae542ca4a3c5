package document

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func newTestService(t *testing.T, template string) *LocalService {
	t.Helper()
	templateDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(templateDir, "completion.txt"), []byte(template), 0o644); err != nil {
		t.Fatal(err)
	}
	svc, err := NewLocalService(templateDir, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return svc
}

func TestCopyMergeExport(t *testing.T) {
	t.Parallel()
	svc := newTestService(t, "Certificate of Completion\n{{RECIPIENT_NAME}}\n{{COURSE_TITLE}}\nID: {{CERTIFICATE_ID}}")
	ctx := context.Background()

	docRef, err := svc.CopyTemplate(ctx, "completion.txt", "cert_enr1")
	if err != nil {
		t.Fatalf("CopyTemplate: %v", err)
	}

	fields := map[string]string{
		"{{RECIPIENT_NAME}}":  "Asha Rao",
		"{{COURSE_TITLE}}":    "Distributed Systems",
		"{{CERTIFICATE_ID}}":  "ACME-2026-AB12C",
	}
	if err := svc.MergeFields(ctx, docRef, fields); err != nil {
		t.Fatalf("MergeFields: %v", err)
	}

	merged, err := os.ReadFile(docRef)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(merged, []byte("{{")) {
		t.Errorf("placeholders left unmerged: %s", merged)
	}
	if !bytes.Contains(merged, []byte("Asha Rao")) {
		t.Error("recipient name not merged")
	}

	pdf, err := svc.ExportPDF(ctx, docRef)
	if err != nil {
		t.Fatalf("ExportPDF: %v", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		t.Errorf("export is not a PDF, starts with %q", pdf[:min(8, len(pdf))])
	}
}

// A retried pipeline run copies to the same working name; the copy must
// overwrite instead of failing.
func TestCopyTemplateOverwrites(t *testing.T) {
	t.Parallel()
	svc := newTestService(t, "Hello {{RECIPIENT_NAME}}")
	ctx := context.Background()

	docRef, err := svc.CopyTemplate(ctx, "completion.txt", "cert_enr1")
	if err != nil {
		t.Fatalf("first copy: %v", err)
	}
	if err := svc.MergeFields(ctx, docRef, map[string]string{"{{RECIPIENT_NAME}}": "Asha"}); err != nil {
		t.Fatal(err)
	}

	again, err := svc.CopyTemplate(ctx, "completion.txt", "cert_enr1")
	if err != nil {
		t.Fatalf("second copy: %v", err)
	}
	if again != docRef {
		t.Errorf("working ref changed across retries: %q vs %q", again, docRef)
	}

	data, err := os.ReadFile(again)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, []byte("{{RECIPIENT_NAME}}")) {
		t.Error("second copy did not restore the pristine template")
	}
}

func TestCopyTemplateMissing(t *testing.T) {
	t.Parallel()
	svc := newTestService(t, "x")
	if _, err := svc.CopyTemplate(context.Background(), "nope.txt", "cert_1"); err == nil {
		t.Fatal("expected error for missing template")
	}
}
