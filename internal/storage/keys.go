package storage

import "strings"

// Keys builds object keys for the two logical namespaces.
//
// Temporary objects live under TempPrefix and are expired by the store's
// own lifecycle policy (24h by default, configured on the bucket, not
// here). Permanent objects live under PermanentPrefix and are never
// auto-expired.
type Keys struct {
	TempPrefix      string
	PermanentPrefix string
}

// NewKeys normalizes the prefixes (no leading/trailing slashes).
func NewKeys(tempPrefix, permanentPrefix string) Keys {
	return Keys{
		TempPrefix:      strings.Trim(tempPrefix, "/"),
		PermanentPrefix: strings.Trim(permanentPrefix, "/"),
	}
}

// Temp returns the temporary key for one job artifact:
// <temp>/<jobID>/<artifactName>. Deterministic so re-assembling the same
// job overwrites rather than duplicates.
func (k Keys) Temp(jobID, artifactName string) string {
	return k.TempPrefix + "/" + jobID + "/" + artifactName
}

// Upload returns the temporary key for a caller-uploaded input image.
func (k Keys) Upload(name string) string {
	return k.TempPrefix + "/uploads/" + name
}

// Permanent returns the permanent key for a promoted artifact under a
// caller-chosen destination prefix.
func (k Keys) Permanent(destPrefix, artifactName string) string {
	dest := strings.Trim(destPrefix, "/")
	if dest == "" {
		return k.PermanentPrefix + "/" + artifactName
	}
	return k.PermanentPrefix + "/" + dest + "/" + artifactName
}
