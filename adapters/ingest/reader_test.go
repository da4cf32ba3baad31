package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"fairlens/domain/core"
)

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func TestReadCSV(t *testing.T) {
	path := writeTempCSV(t, "income, debt ,gender,approved\n1.5,0.2,0,1\n2.0,0.8,1,0\n")

	frame, err := NewDataReader(path).Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	want := []string{"income", "debt", "gender", "approved"}
	if !reflect.DeepEqual(frame.Headers, want) {
		t.Errorf("headers = %v, want %v (trimmed)", frame.Headers, want)
	}
	if frame.NumRows() != 2 {
		t.Errorf("rows = %d, want 2", frame.NumRows())
	}

	samples := frame.SampleRows(5)
	if len(samples) != 2 {
		t.Fatalf("samples = %d rows, want all 2", len(samples))
	}
	if samples[0]["income"] != "1.5" || samples[1]["gender"] != "1" {
		t.Errorf("sample rows mismatched: %v", samples)
	}
}

func TestReadMissingFile(t *testing.T) {
	_, err := NewDataReader(filepath.Join(t.TempDir(), "absent.csv")).Read()
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestReadRequiresDataRow(t *testing.T) {
	path := writeTempCSV(t, "income,debt\n")
	if _, err := NewDataReader(path).Read(); err == nil {
		t.Fatal("expected error for header-only file")
	}
}

func TestDetectSensitiveColumns(t *testing.T) {
	headers := []string{"income", "Gender", "debt", "marital_status", "AGE_YEARS", "city"}
	got := DetectSensitiveColumns(headers)
	want := []string{"Gender", "marital_status", "AGE_YEARS"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("detected = %v, want %v", got, want)
	}

	if got := DetectSensitiveColumns([]string{"income", "debt"}); got != nil {
		t.Errorf("detected = %v, want none", got)
	}
}

func TestFeatureMatrixSplitsLabel(t *testing.T) {
	path := writeTempCSV(t, "income,debt,gender,approved\n1.5,0.2,0,1\n2.0,0.8,1,0\n")
	frame, err := NewDataReader(path).Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	instances, labels, featureNames, err := frame.FeatureMatrix("approved")
	if err != nil {
		t.Fatalf("FeatureMatrix failed: %v", err)
	}
	if !reflect.DeepEqual(featureNames, []string{"income", "debt", "gender"}) {
		t.Errorf("feature names = %v", featureNames)
	}
	if !reflect.DeepEqual(labels, []float64{1, 0}) {
		t.Errorf("labels = %v, want [1 0]", labels)
	}
	if len(instances) != 2 || len(instances[0]) != 3 {
		t.Fatalf("instances shape = %dx%d, want 2x3", len(instances), len(instances[0]))
	}
	if instances[1][0] != 2.0 || instances[1][2] != 1 {
		t.Errorf("instances[1] = %v", instances[1])
	}
}

func TestFeatureMatrixLabelEncodesStrings(t *testing.T) {
	path := writeTempCSV(t, "city,income\nNYC,1\nLA,2\nNYC,3\nSF,4\n")
	frame, err := NewDataReader(path).Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	instances, _, _, err := frame.FeatureMatrix("")
	if err != nil {
		t.Fatalf("FeatureMatrix failed: %v", err)
	}
	// First-appearance encoding: NYC=0, LA=1, SF=2.
	got := []float64{instances[0][0], instances[1][0], instances[2][0], instances[3][0]}
	want := []float64{0, 1, 0, 2}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("city codes = %v, want %v", got, want)
	}
}

func TestFeatureMatrixEmptyCellIsZero(t *testing.T) {
	path := writeTempCSV(t, "a,b\n5,\n,7\n")
	frame, err := NewDataReader(path).Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	instances, _, _, err := frame.FeatureMatrix("")
	if err != nil {
		t.Fatalf("FeatureMatrix failed: %v", err)
	}
	if instances[0][1] != 0 || instances[1][0] != 0 {
		t.Errorf("empty cells = %v, %v, want 0", instances[0][1], instances[1][0])
	}
}

func TestFeatureMatrixUnknownLabelColumn(t *testing.T) {
	path := writeTempCSV(t, "a,b\n1,2\n")
	frame, err := NewDataReader(path).Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	_, _, _, err = frame.FeatureMatrix("missing")
	if !errors.Is(err, core.ErrColumnNotFound) {
		t.Fatalf("expected column-not-found, got %v", err)
	}
}
