package store

import (
	"errors"
	"fmt"

	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/content"
)

// CheckInvariants verifies referential symmetry, type legality and the absence of
// duplicate or dangling edges. All violations are joined into one error.
func CheckInvariants(r *Reader) error {
	var errs []error
	for parentID, kids := range r.st.children {
		pt, ok := r.TypeOf(parentID)
		if !ok {
			errs = append(errs, fmt.Errorf("children listed for missing item %s", parentID))
			continue
		}
		seen := make(map[string]bool, len(kids))
		for _, childID := range kids {
			if seen[childID] {
				errs = append(errs, fmt.Errorf("%s lists child %s twice", parentID, childID))
			}
			seen[childID] = true
			ct, ok := r.TypeOf(childID)
			if !ok {
				errs = append(errs, fmt.Errorf("%s lists missing child %s", parentID, childID))
				continue
			}
			if !content.CanParent(pt, ct) {
				errs = append(errs, fmt.Errorf("%s (%s) owns %s (%s)", parentID, pt, childID, ct))
			}
			if indexOf(r.st.parents[childID], parentID) < 0 {
				errs = append(errs, fmt.Errorf("%s lists child %s but %s does not list it as parent", parentID, childID, childID))
			}
		}
	}
	for childID, ps := range r.st.parents {
		if !r.Has(childID) {
			errs = append(errs, fmt.Errorf("parents listed for missing item %s", childID))
			continue
		}
		seen := make(map[string]bool, len(ps))
		for _, parentID := range ps {
			if seen[parentID] {
				errs = append(errs, fmt.Errorf("%s lists parent %s twice", childID, parentID))
			}
			seen[parentID] = true
			if indexOf(r.st.children[parentID], childID) < 0 {
				errs = append(errs, fmt.Errorf("%s lists parent %s but %s does not list it as child", childID, parentID, parentID))
			}
		}
	}
	if len(r.st.seq) != len(r.st.items) {
		errs = append(errs, fmt.Errorf("order index has %d ids for %d items", len(r.st.seq), len(r.st.items)))
	}
	return errors.Join(errs...)
}
