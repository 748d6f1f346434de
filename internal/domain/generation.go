package domain

import "time"

// GenerationRecord is the persisted result of one successful pipeline run.
// Records are immutable after insert; the owner may delete them through a
// separate path.
type GenerationRecord struct {
	ID                  string
	OwnerID             string
	PublicURL           string
	StorageKey          string
	Prompt              string
	AspectRatio         string
	Kind                string
	Style               string
	SourceImageURL      string
	SourceImageStrength float64
	Scale               int
	CreditCost          int
	CreatedAt           time.Time
}
