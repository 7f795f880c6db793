package rank

import "time"

// Offsets carries the cumulative item counts of a keyword scan from one
// page into the next. Overall counts every listed item, Organic only
// the organically placed ones. Both start at zero and never reset
// within a scan.
type Offsets struct {
	Overall int
	Organic int
}

// PageOutcome is what ranking one page produced.
type PageOutcome struct {
	Records   []RankRecord
	Organic   int
	Sponsored int
}

// Accumulator assigns 1-based dual rank counters to classified items.
// The clock is injectable for tests.
type Accumulator struct {
	now func() time.Time
}

func NewAccumulator() *Accumulator {
	return &Accumulator{now: time.Now}
}

// RankPage walks one page's classified items in order, advancing the
// overall counter for every item and the organic counter for organic
// items. A record is emitted for each target ASIN on its first sighting
// in the scan; found tracks sightings across pages and is updated in
// place. Returned offsets feed the next page.
func (a *Accumulator) RankPage(
	keyword string,
	page int,
	items []ClassifiedItem,
	targets map[string]struct{},
	found map[string]struct{},
	off Offsets,
) (PageOutcome, Offsets) {
	var outcome PageOutcome
	position := 0
	organic := 0

	for _, item := range items {
		position++
		if item.Placement == PlacementOrganic {
			organic++
		} else {
			outcome.Sponsored++
		}

		if _, wanted := targets[item.ASIN]; !wanted {
			continue
		}
		if _, seen := found[item.ASIN]; seen {
			// First match wins; later sightings do not produce records.
			continue
		}
		found[item.ASIN] = struct{}{}

		record := RankRecord{
			Timestamp:      a.now(),
			Keyword:        keyword,
			ASIN:           item.ASIN,
			Placement:      item.Placement,
			Page:           page,
			PositionOnPage: position,
			OverallRank:    off.Overall + position,
			Status:         StatusFound,
		}
		if item.Placement == PlacementOrganic {
			record.OrganicRank = off.Organic + organic
		}
		outcome.Records = append(outcome.Records, record)
	}

	outcome.Organic = organic
	next := Offsets{
		Overall: off.Overall + position,
		Organic: off.Organic + organic,
	}
	return outcome, next
}

// NotFoundRecord builds the single terminal record for a target ASIN
// that never appeared before the scan ended.
func (a *Accumulator) NotFoundRecord(keyword, asin string) RankRecord {
	return RankRecord{
		Timestamp: a.now(),
		Keyword:   keyword,
		ASIN:      asin,
		Status:    StatusNotFound,
	}
}
