package content

import "fmt"

// parentOf is the fixed compatibility table: child type -> the only legal parent type.
var parentOf = map[ItemType]ItemType{
	TypeTactic:       TypeObjective,
	TypeBestPractice: TypeTactic,
	TypeStep:         TypeBestPractice,
}

// ExpectedParentType returns the type an item of childType must be attached under.
// The second result is false for Objective (always a root) and for unknown types.
func ExpectedParentType(childType ItemType) (ItemType, bool) {
	p, ok := parentOf[childType]
	return p, ok
}

// ExpectedChildType is the inverse of ExpectedParentType. Step has no child type.
func ExpectedChildType(parentType ItemType) (ItemType, bool) {
	for child, parent := range parentOf {
		if parent == parentType {
			return child, true
		}
	}
	return 0, false
}

// CanParent reports whether an item of parentType may own an item of childType.
func CanParent(parentType, childType ItemType) bool {
	p, ok := ExpectedParentType(childType)
	return ok && p == parentType
}

// CheckRelationship returns ErrInvalidRelationship (wrapped with both types) when
// parentType may not own childType.
func CheckRelationship(parentType, childType ItemType) error {
	if CanParent(parentType, childType) {
		return nil
	}
	if _, ok := ExpectedParentType(childType); !ok {
		return fmt.Errorf("%w: %s cannot have a parent", ErrInvalidRelationship, childType)
	}
	return fmt.Errorf("%w: %s cannot be placed under %s", ErrInvalidRelationship, childType, parentType)
}
