// Package resolve reconstructs fully-populated object graphs from sparse,
// foreign-key-only records. Resolution is best-effort enrichment of a read
// path: an unresolvable reference degrades to an absent field, never an
// error.
package resolve

import (
	"context"

	"github.com/openauto/dealerdesk/internal/domain"
)

// DefaultDepth bounds recursion so resolution terminates even though the
// schema contains reference cycles (quotation ↔ order).
const DefaultDepth = 4

// Resolver walks a record's declared foreign keys and embeds the referenced
// entities, consulting the per-operation cache before every fetch.
type Resolver struct {
	store domain.EntityStore
}

// New creates a resolver over the given Fetch Port.
func New(store domain.EntityStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve enriches rec with a fresh per-operation cache and the default
// depth budget.
func (r *Resolver) Resolve(ctx context.Context, t domain.EntityType, rec domain.Record) domain.Record {
	return r.ResolveWith(ctx, NewCache(), t, rec, DefaultDepth)
}

// ResolveWith enriches rec, sharing cache across the roots of one logical
// operation. The input record is not mutated.
func (r *Resolver) ResolveWith(ctx context.Context, cache *Cache, t domain.EntityType, rec domain.Record, budget int) domain.Record {
	if rec == nil || budget <= 0 {
		return rec
	}

	out := rec.Clone()
	for _, ref := range domain.RefFields(t) {
		if ref.Multi {
			r.resolveMulti(ctx, cache, out, ref, budget)
			continue
		}

		embedded := asRecord(out[ref.Embed])
		if embedded != nil && isComplete(ref.Target, embedded) {
			continue
		}

		id := out.Str(ref.IDField)
		if id == "" {
			id = embedded.ID()
		}
		if id == "" {
			continue
		}

		merged := embedded
		if fetched := r.fetch(ctx, cache, ref.Target, id); fetched != nil {
			merged = mergeAdditive(embedded, fetched)
		}
		if merged == nil {
			continue
		}
		out[ref.Embed] = r.ResolveWith(ctx, cache, ref.Target, merged, budget-1)
	}
	return out
}

// resolveMulti resolves an id-list reference into an embedded record slice.
// An already-embedded list is left as is.
func (r *Resolver) resolveMulti(ctx context.Context, cache *Cache, out domain.Record, ref domain.RefField, budget int) {
	if out.Has(ref.Embed) {
		return
	}
	ids := stringList(out[ref.IDField])
	if len(ids) == 0 {
		return
	}

	resolved := make([]domain.Record, 0, len(ids))
	for _, id := range ids {
		fetched := r.fetch(ctx, cache, ref.Target, id)
		if fetched == nil {
			continue
		}
		resolved = append(resolved, r.ResolveWith(ctx, cache, ref.Target, fetched.Clone(), budget-1))
	}
	if len(resolved) > 0 {
		out[ref.Embed] = resolved
	}
}

// fetch loads one record through the cache and single-flight guard. The
// direct get-by-id call is tried first; on any failure it falls back to
// listing the collection and scanning for the id, because the backend's
// endpoints are inconsistently complete. Returns nil when the reference
// cannot be resolved.
func (r *Resolver) fetch(ctx context.Context, cache *Cache, t domain.EntityType, id string) domain.Record {
	if rec, ok := cache.Get(t, id); ok {
		return rec
	}

	v, err := cache.do(t, id, func() (any, error) {
		if rec, ok := cache.Get(t, id); ok {
			return rec, nil
		}

		rec, err := r.store.GetByID(ctx, t, id)
		if err != nil {
			rec = nil
			all, lerr := r.store.List(ctx, t)
			if lerr != nil {
				return nil, lerr
			}
			for _, cand := range all {
				if cand.ID() == id {
					rec = cand
					break
				}
			}
			if rec == nil {
				return nil, err
			}
		}

		cache.put(t, id, rec)
		return rec, nil
	})
	if err != nil || v == nil {
		return nil
	}
	return v.(domain.Record)
}

// isComplete reports whether an embedded record needs no further fetching:
// every declared reference it actually carries is already embedded. Leaf
// types are complete by construction.
func isComplete(t domain.EntityType, rec domain.Record) bool {
	for _, ref := range domain.RefFields(t) {
		if rec.Has(ref.IDField) && !rec.Has(ref.Embed) {
			return false
		}
	}
	return rec.Has(domain.FieldID)
}

// mergeAdditive overlays src onto dst without overwriting any field already
// present and non-nil on dst, so locally-edited fields are never clobbered.
func mergeAdditive(dst, src domain.Record) domain.Record {
	if dst == nil {
		return src.Clone()
	}
	out := dst.Clone()
	for k, v := range src {
		if !out.Has(k) {
			out[k] = v
		}
	}
	return out
}

func asRecord(v any) domain.Record {
	switch rec := v.(type) {
	case domain.Record:
		return rec
	case map[string]any:
		return domain.Record(rec)
	}
	return nil
}

func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
