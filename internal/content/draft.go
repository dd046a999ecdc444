package content

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	MaxNameLen        = 200
	MaxDescriptionLen = 10_000
	MaxScore          = 100
)

// Draft is the input to Create. It may come from a form or from the suggestion provider,
// so it is always normalised and validated before use.
type Draft struct {
	Type         ItemType  `json:"type"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Status       Status    `json:"status,omitempty"`
	QualityScore *int      `json:"quality_score,omitempty"`
	UsageCount   *int      `json:"usage_count,omitempty"`
	Targeting    Targeting `json:"targeting"`
	ParentIDs    []string  `json:"parent_ids,omitempty"`
	Owner        string    `json:"owner,omitempty"`
}

// Normalize trims text fields, defaults the status to draft and drops empty or repeated
// parent ids and targeting values.
func (d *Draft) Normalize() {
	d.Name = strings.TrimSpace(d.Name)
	d.Description = strings.TrimSpace(d.Description)
	d.Owner = strings.TrimSpace(d.Owner)
	if d.Status == "" {
		d.Status = StatusDraft
	}
	d.ParentIDs = dedupe(d.ParentIDs)
	d.Targeting = normalizeTargeting(d.Targeting)
}

// Validate checks field ranges. It does not look at the store, so parent existence and
// parent types are checked by the engine.
func (d *Draft) Validate() error {
	switch {
	case d.Type == TypeUnknown:
		return fmt.Errorf("%w: type is required", ErrInvalidDraft)
	case !d.Type.Valid():
		return fmt.Errorf("%w: unknown type %d", ErrInvalidDraft, int(d.Type))
	}
	if err := validateName(d.Name); err != nil {
		return err
	}
	if err := validateDescription(d.Description); err != nil {
		return err
	}
	if !d.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidDraft, d.Status)
	}
	if err := validateScores(d.QualityScore, d.UsageCount); err != nil {
		return err
	}
	if d.Type == TypeObjective && len(d.ParentIDs) > 0 {
		return fmt.Errorf("%w: Objective cannot have a parent", ErrInvalidRelationship)
	}
	return nil
}

// Patch is a shallow, field-level update of the non-structural fields of an item.
// Nil fields are left untouched.
type Patch struct {
	Name              *string    `json:"name,omitempty"`
	Description       *string    `json:"description,omitempty"`
	Status            *Status    `json:"status,omitempty"`
	QualityScore      *int       `json:"quality_score,omitempty"`
	UsageCount        *int       `json:"usage_count,omitempty"`
	ClearQualityScore bool       `json:"clear_quality_score,omitempty"`
	ClearUsageCount   bool       `json:"clear_usage_count,omitempty"`
	Targeting         *Targeting `json:"targeting,omitempty"`
	Owner             *string    `json:"owner,omitempty"`
}

// IsEmpty reports whether the patch sets nothing
func (p Patch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil && p.Status == nil &&
		p.QualityScore == nil && p.UsageCount == nil &&
		!p.ClearQualityScore && !p.ClearUsageCount &&
		p.Targeting == nil && p.Owner == nil
}

// Validate checks the fields the patch sets.
func (p Patch) Validate() error {
	if p.Name != nil {
		if err := validateName(strings.TrimSpace(*p.Name)); err != nil {
			return err
		}
	}
	if p.Description != nil {
		if err := validateDescription(strings.TrimSpace(*p.Description)); err != nil {
			return err
		}
	}
	if p.Status != nil && !p.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidDraft, *p.Status)
	}
	if p.QualityScore != nil && p.ClearQualityScore {
		return fmt.Errorf("%w: quality score both set and cleared", ErrInvalidDraft)
	}
	if p.UsageCount != nil && p.ClearUsageCount {
		return fmt.Errorf("%w: usage count both set and cleared", ErrInvalidDraft)
	}
	return validateScores(p.QualityScore, p.UsageCount)
}

// Apply merges the patch into it. Structure (ParentIDs/ChildIDs) is never touched.
func (p Patch) Apply(it *Item) {
	if p.Name != nil {
		it.Name = strings.TrimSpace(*p.Name)
	}
	if p.Description != nil {
		it.Description = strings.TrimSpace(*p.Description)
	}
	if p.Status != nil {
		it.Status = *p.Status
	}
	switch {
	case p.ClearQualityScore:
		it.QualityScore = nil
	case p.QualityScore != nil:
		it.QualityScore = Ptr(*p.QualityScore)
	}
	switch {
	case p.ClearUsageCount:
		it.UsageCount = nil
	case p.UsageCount != nil:
		it.UsageCount = Ptr(*p.UsageCount)
	}
	if p.Targeting != nil {
		it.Targeting = normalizeTargeting(p.Targeting.Clone())
	}
	if p.Owner != nil {
		it.Owner = strings.TrimSpace(*p.Owner)
	}
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidDraft)
	}
	if len(name) > MaxNameLen {
		return fmt.Errorf("%w: name longer than %d bytes", ErrInvalidDraft, MaxNameLen)
	}
	if strings.IndexFunc(name, isControl) >= 0 {
		return fmt.Errorf("%w: name contains control characters", ErrInvalidDraft)
	}
	return nil
}

func validateDescription(description string) error {
	if len(description) > MaxDescriptionLen {
		return fmt.Errorf("%w: description longer than %d bytes", ErrInvalidDraft, MaxDescriptionLen)
	}
	return nil
}

func isControl(r rune) bool {
	return unicode.IsControl(r)
}

func validateScores(quality, usage *int) error {
	if quality != nil && (*quality < 0 || *quality > MaxScore) {
		return fmt.Errorf("%w: quality score %d outside 0-%d", ErrInvalidDraft, *quality, MaxScore)
	}
	if usage != nil && *usage < 0 {
		return fmt.Errorf("%w: negative usage count %d", ErrInvalidDraft, *usage)
	}
	return nil
}

func normalizeTargeting(t Targeting) Targeting {
	return Targeting{
		Industries: dedupe(t.Industries),
		Regions:    dedupe(t.Regions),
		JobRoles:   dedupe(t.JobRoles),
		Accounts:   dedupe(t.Accounts),
	}
}

// dedupe trims values and drops blanks and repeats, keeping first-seen order.
func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
