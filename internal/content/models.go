package content

import (
	"fmt"
	"strings"
	"time"
)

// ItemType is one level of the content hierarchy. The order of the constants is the
// hierarchy depth: an Objective sits at depth 0, a Step at depth 3. The zero value is
// TypeUnknown, so a payload that leaves the type out never passes validation.
type ItemType int

const (
	TypeUnknown ItemType = iota
	TypeObjective
	TypeTactic
	TypeBestPractice
	TypeStep
)

var typeNames = [...]string{"Objective", "Tactic", "BestPractice", "Step"}

// AllTypes lists every item type from root to leaf
func AllTypes() []ItemType {
	return []ItemType{TypeObjective, TypeTactic, TypeBestPractice, TypeStep}
}

func (t ItemType) String() string {
	if t == TypeUnknown {
		return "Unknown"
	}
	if t.Valid() {
		return typeNames[t-TypeObjective]
	}
	return fmt.Sprintf("ItemType(%d)", int(t))
}

// Valid reports whether t is one of the four known types
func (t ItemType) Valid() bool {
	return t >= TypeObjective && t <= TypeStep
}

// Depth is the hierarchy level, 0 for Objective.
func (t ItemType) Depth() int { return int(t - TypeObjective) }

// ParseItemType accepts the canonical names plus a few spellings used by UI payloads
// ("best-practice", "best_practice", lowercase).
func ParseItemType(s string) (ItemType, error) {
	norm := strings.ToLower(strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.TrimSpace(s)))
	for i, name := range typeNames {
		if strings.ToLower(name) == norm {
			return TypeObjective + ItemType(i), nil
		}
	}
	return TypeUnknown, fmt.Errorf("unknown item type %q", s)
}

func (t ItemType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid item type %d", int(t))
	}
	return []byte(t.String()), nil
}

func (t *ItemType) UnmarshalText(b []byte) error {
	parsed, err := ParseItemType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Status is the editorial state of an item
type Status string

const (
	StatusDraft    Status = "draft"
	StatusInReview Status = "in-review"
	StatusApproved Status = "approved"
	StatusReleased Status = "released"
)

// AllStatuses lists statuses in workflow order
func AllStatuses() []Status {
	return []Status{StatusDraft, StatusInReview, StatusApproved, StatusReleased}
}

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusInReview, StatusApproved, StatusReleased:
		return true
	default:
		return false
	}
}

// Targeting holds the audience attributes used only for filtering.
type Targeting struct {
	Industries []string `json:"industries,omitempty" yaml:"industries,omitempty"`
	Regions    []string `json:"regions,omitempty" yaml:"regions,omitempty"`
	JobRoles   []string `json:"job_roles,omitempty" yaml:"job_roles,omitempty"`
	Accounts   []string `json:"accounts,omitempty" yaml:"accounts,omitempty"`
}

// Clone returns a deep copy
func (t Targeting) Clone() Targeting {
	return Targeting{
		Industries: cloneStrings(t.Industries),
		Regions:    cloneStrings(t.Regions),
		JobRoles:   cloneStrings(t.JobRoles),
		Accounts:   cloneStrings(t.Accounts),
	}
}

// Item is a single piece of strategic content. ParentIDs and ChildIDs are materialised
// from the store's edge index on every read; writing to them has no effect on the graph.
type Item struct {
	ID           string    `json:"id"`
	Type         ItemType  `json:"type"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Status       Status    `json:"status"`
	QualityScore *int      `json:"quality_score,omitempty"`
	UsageCount   *int      `json:"usage_count,omitempty"`
	Targeting    Targeting `json:"targeting"`
	ParentIDs    []string  `json:"parent_ids"`
	ChildIDs     []string  `json:"child_ids"`
	CreatedAt    time.Time `json:"created_at"`
	LastEditedAt time.Time `json:"last_edited_at"`
	LastEditedBy string    `json:"last_edited_by"`
	Owner        string    `json:"owner"`
}

// Clone returns a deep copy of the item, including optional scores and id lists.
func (it Item) Clone() Item {
	out := it
	if it.QualityScore != nil {
		out.QualityScore = Ptr(*it.QualityScore)
	}
	if it.UsageCount != nil {
		out.UsageCount = Ptr(*it.UsageCount)
	}
	out.Targeting = it.Targeting.Clone()
	out.ParentIDs = cloneStrings(it.ParentIDs)
	out.ChildIDs = cloneStrings(it.ChildIDs)
	return out
}

// Ptr returns a pointer to the given value. Useful for optional fields.
func Ptr[T any](v T) *T {
	return &v
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
