package storage

import "testing"

func TestKeysNormalizesPrefixes(t *testing.T) {
	k := NewKeys("/temp/", "permanent/")
	if k.TempPrefix != "temp" || k.PermanentPrefix != "permanent" {
		t.Errorf("prefixes = %q, %q", k.TempPrefix, k.PermanentPrefix)
	}
}

func TestKeysTemp(t *testing.T) {
	k := NewKeys("temp", "permanent")
	if got := k.Temp("job-1", "overlay"); got != "temp/job-1/overlay" {
		t.Errorf("Temp = %q", got)
	}
	// same job and artifact always yield the same key
	if k.Temp("job-1", "overlay") != k.Temp("job-1", "overlay") {
		t.Error("Temp is not deterministic")
	}
}

func TestKeysUpload(t *testing.T) {
	k := NewKeys("temp", "permanent")
	if got := k.Upload("abc.png"); got != "temp/uploads/abc.png" {
		t.Errorf("Upload = %q", got)
	}
}

func TestKeysPermanent(t *testing.T) {
	k := NewKeys("temp", "permanent")
	testCases := []struct {
		dest string
		want string
	}{
		{"patients/42", "permanent/patients/42/overlay"},
		{"/patients/42/", "permanent/patients/42/overlay"},
		{"", "permanent/overlay"},
	}
	for _, tc := range testCases {
		if got := k.Permanent(tc.dest, "overlay"); got != tc.want {
			t.Errorf("Permanent(%q) = %q, want %q", tc.dest, got, tc.want)
		}
	}
}
