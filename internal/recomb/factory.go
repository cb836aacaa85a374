package recomb

import (
	"fmt"
	"slices"

	"tessera/internal/feature"
)

// Names accepted by NewFilter.
const (
	NameNone             = "none"
	NameIdentity         = "identity"
	NameCoverage         = "coverage"
	NameLinearDistortion = "lineardistortion"
	NameNGram            = "ngram"
	NameClassic          = "classic"
	NameMSD              = "msd"
	NameFine             = "fine"
	NameExact            = "exact"
	NameDTU              = "dtu"
	NameDTUMSD           = "dtumsd"
)

// Names lists the filter names NewFilter accepts.
func Names() []string {
	return []string{
		NameNone, NameIdentity, NameCoverage, NameLinearDistortion, NameNGram,
		NameClassic, NameMSD, NameFine, NameExact, NameDTU, NameDTUMSD,
	}
}

// NewFilter builds a named filter for the featurizers in set. With
// msdReordering the classic and dtu filters also key on the MSD edge.
func NewFilter(name string, msdReordering bool, set *feature.Set) (Filter, error) {
	if !slices.Contains(Names(), name) {
		return Filter{}, fmt.Errorf("unknown recombination filter %q", name)
	}
	if msdReordering {
		switch name {
		case NameClassic:
			name = NameMSD
		case NameDTU:
			name = NameDTUMSD
		case NameMSD, NameDTUMSD:
		default:
			return Filter{}, fmt.Errorf("recombination filter %q does not support MSD reordering", name)
		}
	}
	var lmSlots, allSlots []feature.Slot
	if set != nil {
		lmSlots = set.SlotsWhere(feature.LanguageModel)
		allSlots = set.SlotsWhere(feature.AnyStateful)
	}
	lm := Filter{Kind: LMContext, Slots: lmSlots}
	cov := Filter{Kind: Coverage}
	switch name {
	case NameNone:
		return Filter{Kind: None}, nil
	case NameIdentity:
		return AllOf(Filter{Kind: Identity}, cov), nil
	case NameCoverage:
		return cov, nil
	case NameLinearDistortion:
		return AllOf(Filter{Kind: LinearDistortion}, cov), nil
	case NameNGram:
		return AllOf(lm, cov), nil
	case NameClassic:
		return AllOf(Filter{Kind: LinearDistortion}, lm, cov), nil
	case NameMSD:
		return AllOf(Filter{Kind: MSD}, lm, cov), nil
	case NameFine:
		return AllOf(Filter{Kind: Identity}, Filter{Kind: LinearDistortion}, cov), nil
	case NameExact:
		return AllOf(Filter{Kind: MSD}, Filter{Kind: Exact, Slots: allSlots}, cov), nil
	case NameDTU:
		return AllOf(Filter{Kind: DTU}, Filter{Kind: LinearDistortion}, lm), nil
	default: // NameDTUMSD
		return AllOf(Filter{Kind: DTU}, Filter{Kind: MSD}, lm), nil
	}
}
