// Package aips selects the AIPs a batch run should act on.
package aips

import "dipbatch/internal/storageservice"

// SkipReason explains why a record was not selected.
type SkipReason string

const (
	SkipMissingUUID     SkipReason = "missing uuid"
	SkipMissingLocation SkipReason = "missing current_location"
	SkipOtherLocation   SkipReason = "different location"
)

// Skip records one excluded package. UUID is empty for SkipMissingUUID.
type Skip struct {
	UUID     string
	Location string
	Reason   SkipReason
}

// FilterByLocation returns the identifiers of records stored in the location
// with locationUUID, in input order. Locations are compared exactly against
// the API reference form; everything else is reported as a Skip.
func FilterByLocation(records []storageservice.Package, locationUUID string) ([]string, []Skip) {
	want := storageservice.LocationURI(locationUUID)
	selected := make([]string, 0, len(records))
	var skipped []Skip
	for _, record := range records {
		switch {
		case record.UUID == "":
			skipped = append(skipped, Skip{Location: record.CurrentLocation, Reason: SkipMissingUUID})
		case record.CurrentLocation == "":
			skipped = append(skipped, Skip{UUID: record.UUID, Reason: SkipMissingLocation})
		case record.CurrentLocation != want:
			skipped = append(skipped, Skip{UUID: record.UUID, Location: record.CurrentLocation, Reason: SkipOtherLocation})
		default:
			selected = append(selected, record.UUID)
		}
	}
	return selected, skipped
}
