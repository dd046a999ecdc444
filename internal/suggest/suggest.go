// Package suggest asks an external generator for draft content and turns its answers
// into drafts the engine will accept.
//
// Generators are untrusted: every draft they return is normalised and validated like
// manual input, its type is forced to the child type of the requested parent, and drafts
// that fail validation are dropped rather than failing the whole request.
package suggest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/content"
	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/logging"
)

var (
	// ErrProvider wraps failures of the generator itself (exit status, unreadable output).
	ErrProvider = errors.New("suggestion provider failed")
	// ErrNoChildType is returned when the parent is a Step, which has no children.
	ErrNoChildType = errors.New("item type has no child type")
)

// Request asks for drafts to place under Parent. A zero Parent asks for Objectives.
type Request struct {
	Parent   content.Item
	Siblings []content.Item // existing children, shown to the generator and used to drop repeats
	Hint     string
	Count    int
}

// ChildType is the type every returned draft gets
func (r Request) ChildType() (content.ItemType, error) {
	if r.Parent.ID == "" {
		return content.TypeObjective, nil
	}
	t, ok := content.ExpectedChildType(r.Parent.Type)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNoChildType, r.Parent.Type)
	}
	return t, nil
}

// Provider produces drafts for a request
type Provider interface {
	Suggest(ctx context.Context, req Request) ([]content.Draft, error)
}

// Sanitize normalises raw drafts for req: it forces the child type, attaches them to the
// parent, drops invalid drafts and repeats of sibling or earlier names, and keeps at
// most req.Count (when positive).
func Sanitize(ctx context.Context, req Request, raw []content.Draft, log *zap.Logger) ([]content.Draft, error) {
	childType, err := req.ChildType()
	if err != nil {
		return nil, err
	}
	log = logging.FromContext(ctx, log)

	seen := make(map[string]bool, len(req.Siblings)+len(raw))
	for _, s := range req.Siblings {
		seen[strings.ToLower(strings.TrimSpace(s.Name))] = true
	}

	out := make([]content.Draft, 0, len(raw))
	for i, d := range raw {
		d.Type = childType
		d.ParentIDs = nil
		if req.Parent.ID != "" {
			d.ParentIDs = []string{req.Parent.ID}
		}
		d.Normalize()
		if err := d.Validate(); err != nil {
			log.Warn("dropping invalid draft", zap.Int("index", i), zap.Error(err))
			continue
		}
		key := strings.ToLower(d.Name)
		if seen[key] {
			log.Warn("dropping repeated draft", zap.Int("index", i), zap.String("name", d.Name))
			continue
		}
		seen[key] = true
		out = append(out, d)
		if req.Count > 0 && len(out) == req.Count {
			break
		}
	}
	return out, nil
}

// StaticProvider returns the same drafts for every request, sanitised for it.
type StaticProvider struct {
	Drafts []content.Draft
	Log    *zap.Logger
}

func (p StaticProvider) Suggest(ctx context.Context, req Request) ([]content.Draft, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw := make([]content.Draft, len(p.Drafts))
	copy(raw, p.Drafts)
	return Sanitize(ctx, req, raw, p.Log)
}

// SuggestMany runs one request per element of reqs with at most limit in flight. Results
// line up with reqs. The first failure cancels the rest and is returned.
func SuggestMany(ctx context.Context, p Provider, reqs []Request, limit int) ([][]content.Draft, error) {
	out := make([][]content.Draft, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			drafts, err := p.Suggest(gctx, req)
			if err != nil {
				return fmt.Errorf("suggesting under %q: %w", req.Parent.Name, err)
			}
			out[i] = drafts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
