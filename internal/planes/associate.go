package planes

import (
	"github.com/banshee-data/planemesh/internal/monitoring"
)

// OutcomeKind is the association decision for one candidate.
type OutcomeKind int

const (
	// OutcomeNew means no tracked plane accepted the candidate.
	OutcomeNew OutcomeKind = iota
	// OutcomeAssociated means the candidate matched a tracked plane that
	// had not been claimed yet in this call.
	OutcomeAssociated
	// OutcomeDoubleAssociated means the candidate matched a tracked plane
	// already claimed by an earlier candidate and double association is
	// allowed.
	OutcomeDoubleAssociated
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeNew:
		return "new"
	case OutcomeAssociated:
		return "associated"
	case OutcomeDoubleAssociated:
		return "double-associated"
	default:
		return "unknown"
	}
}

// Outcome records the decision for one candidate. Tracked is only set for
// the associated kinds.
type Outcome struct {
	Candidate Symbol
	Kind      OutcomeKind
	Tracked   Symbol
}

// AssociationResult holds one outcome per candidate, in candidate order,
// and copies of the candidates that were not associated.
type AssociationResult struct {
	Outcomes     []Outcome
	Unassociated []Plane
}

// Associate matches each candidate against the tracked planes in order.
// The first geometrically equal tracked plane not yet claimed in this call
// takes the candidate. When the match was already claimed, allowDouble
// decides whether to accept it anyway or keep scanning. Candidates that
// find nothing are returned as unassociated. Neither input is modified.
func Associate(candidates, tracked []Plane, normalTol, distanceTol float64, allowDouble bool) AssociationResult {
	res := AssociationResult{Outcomes: make([]Outcome, 0, len(candidates))}

	if len(tracked) == 0 {
		monitoring.Diagf("[planes] no tracked planes, %d candidates become new", len(candidates))
		for _, c := range candidates {
			res.Outcomes = append(res.Outcomes, Outcome{Candidate: c.ID, Kind: OutcomeNew})
			res.Unassociated = append(res.Unassociated, c.Clone())
		}
		return res
	}

	claimed := make(map[Symbol]bool, len(tracked))
	for _, c := range candidates {
		out := Outcome{Candidate: c.ID, Kind: OutcomeNew}
		for _, tp := range tracked {
			if !tp.GeometricEqual(c, normalTol, distanceTol) {
				continue
			}
			if !claimed[tp.ID] {
				claimed[tp.ID] = true
				out.Kind, out.Tracked = OutcomeAssociated, tp.ID
				monitoring.Tracef("[planes] candidate %s associated with tracked %s", c.ID, tp.ID)
				break
			}
			if allowDouble {
				monitoring.Opsf("[planes] double association of tracked plane %s with candidate %s, accepting", tp.ID, c.ID)
				out.Kind, out.Tracked = OutcomeDoubleAssociated, tp.ID
				break
			}
			monitoring.Opsf("[planes] double association of tracked plane %s with candidate %s, searching further", tp.ID, c.ID)
		}
		res.Outcomes = append(res.Outcomes, out)
		if out.Kind == OutcomeNew {
			res.Unassociated = append(res.Unassociated, c.Clone())
		}
	}
	return res
}
