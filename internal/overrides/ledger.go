package overrides

import (
	"cmp"
	"maps"
	"slices"

	"github.com/google/uuid"
)

// Key identifies a ledger entry within a shipment. A zero InstanceID is the
// rule-wide scope.
type Key struct {
	RuleID     string
	InstanceID uuid.UUID
}

// NewKey builds a Key from an optional instance id.
func NewKey(ruleID string, instanceID *uuid.UUID) Key {
	k := Key{RuleID: ruleID}
	if instanceID != nil {
		k.InstanceID = *instanceID
	}
	return k
}

// View is the derived read model of a shipment ledger: the latest record per
// key. It satisfies decision.Matcher.
type View struct {
	latest map[Key]Override
}

// Project folds an append-only log into a View. Records are ordered by
// CreatedAt then Seq; the last record per key wins regardless of input order.
func Project(log []Override) View {
	ordered := slices.Clone(log)
	slices.SortStableFunc(ordered, compareRecords)

	latest := make(map[Key]Override, len(ordered))
	for _, o := range ordered {
		latest[o.Key()] = o
	}
	return View{latest: latest}
}

func compareRecords(a, b Override) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.Seq, b.Seq)
}

// Latest returns the most recent record stored under k.
func (v View) Latest(k Key) (Override, bool) {
	o, ok := v.latest[k]
	return o, ok
}

// IsActive reports whether the latest record under k is active.
func (v View) IsActive(k Key) bool {
	o, ok := v.latest[k]
	return ok && o.Active
}

// Match reports whether an active override covers a result of ruleID
// attributed to instanceID. A rule-wide override covers every instance.
func (v View) Match(ruleID string, instanceID *uuid.UUID) bool {
	if v.IsActive(Key{RuleID: ruleID}) {
		return true
	}
	if instanceID == nil {
		return false
	}
	return v.IsActive(Key{RuleID: ruleID, InstanceID: *instanceID})
}

// Active returns the active records ordered by rule id then instance id.
func (v View) Active() []Override {
	keys := slices.SortedFunc(maps.Keys(v.latest), func(a, b Key) int {
		if c := cmp.Compare(a.RuleID, b.RuleID); c != 0 {
			return c
		}
		return cmp.Compare(a.InstanceID.String(), b.InstanceID.String())
	})

	out := make([]Override, 0, len(keys))
	for _, k := range keys {
		if o := v.latest[k]; o.Active {
			out = append(out, o)
		}
	}
	return out
}
