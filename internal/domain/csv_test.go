package domain

import (
	"math"
	"testing"
)

func TestRenderFindingsCSV(t *testing.T) {
	findings := []Finding{
		{ToothPosition: "11", FindingType: FindingCaries, ConfidenceScore: 0.95},
		{ToothPosition: "12", FindingType: FindingFilling, ConfidenceScore: 0.88},
	}

	got := RenderFindingsCSV("a", findings)
	want := "file_name,fdi,finding,score\na,11,CARIES,0.95\na,12,FILLING,0.88\n"
	if got != want {
		t.Errorf("RenderFindingsCSV mismatch:\ngot:  %q\nwant: %q", got, want)
	}
}

func TestRenderFindingsCSVEmpty(t *testing.T) {
	got := RenderFindingsCSV("scan-042", nil)
	want := "file_name,fdi,finding,score\n"
	if got != want {
		t.Errorf("header-only CSV mismatch: got %q, want %q", got, want)
	}
}

func TestFindingsCSVRoundTrip(t *testing.T) {
	findings := []Finding{
		{ToothPosition: "11", FindingType: FindingCaries, ConfidenceScore: 0.95},
		{ToothPosition: "11", FindingType: FindingPeriapicalRadiolucency, ConfidenceScore: 0.123456789},
		{ToothPosition: "48", FindingType: FindingMissingTooth, ConfidenceScore: 1},
		{ToothPosition: "26", FindingType: FindingRootCanalFilling, ConfidenceScore: 0.0000001},
	}

	text := RenderFindingsCSV("pano-7", findings)
	fileName, parsed, err := ParseFindingsCSV(text)
	if err != nil {
		t.Fatalf("ParseFindingsCSV failed: %v", err)
	}
	if fileName != "pano-7" {
		t.Errorf("file name = %q, want pano-7", fileName)
	}
	if len(parsed) != len(findings) {
		t.Fatalf("parsed %d findings, want %d", len(parsed), len(findings))
	}
	for i, f := range findings {
		if parsed[i].ToothPosition != f.ToothPosition {
			t.Errorf("row %d: tooth position = %q, want %q", i, parsed[i].ToothPosition, f.ToothPosition)
		}
		if parsed[i].FindingType != f.FindingType {
			t.Errorf("row %d: finding type = %q, want %q", i, parsed[i].FindingType, f.FindingType)
		}
		if math.Abs(parsed[i].ConfidenceScore-f.ConfidenceScore) > 1e-6 {
			t.Errorf("row %d: score = %v, want %v", i, parsed[i].ConfidenceScore, f.ConfidenceScore)
		}
	}
}

func TestParseFindingsCSVRejectsBadInput(t *testing.T) {
	testCases := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"wrong header", "a,b,c,d\n"},
		{"bad score", "file_name,fdi,finding,score\nx,11,CARIES,notanumber\n"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := ParseFindingsCSV(tc.text); err == nil {
				t.Fatal("expected parse error, got nil")
			}
		})
	}
}
