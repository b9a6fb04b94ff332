package rotation

import (
	"errors"
	"fmt"
	"slices"

	"github.com/dropDatabas3/edgegate/internal/cdn"
)

// ErrInvariant is returned when a plan would break trust continuity. Nothing
// has been mutated when it is returned.
var ErrInvariant = errors.New("rotation: invariant violated")

// State is derived from which rotation slots exist in the key inventory.
type State int

const (
	StateNone State = iota
	StateOneKey
	StateTwoKeys
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateOneKey:
		return "one-key"
	case StateTwoKeys:
		return "two-keys"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// SlotNames are the public key names used by rotation.
type SlotNames struct {
	Key1   string
	Key2   string
	Legacy string
}

func Names(prefix string) SlotNames {
	return SlotNames{
		Key1:   prefix + "-KEY_1",
		Key2:   prefix + "-KEY_2",
		Legacy: prefix + "-DUMMY_KEY",
	}
}

// Entry is a public key with the ETag needed to delete it. ETag is empty
// until the key has been fetched.
type Entry struct {
	cdn.PublicKey
	ETag string
}

// Inventory is the slot view of the registry's public keys.
type Inventory struct {
	Names  SlotNames
	Key1   *Entry
	Key2   *Entry
	Legacy *Entry
}

// NewInventory locates the slots among keys. A slot name registered twice is
// an invariant violation.
func NewInventory(names SlotNames, keys []cdn.PublicKey) (Inventory, error) {
	inv := Inventory{Names: names}
	for _, k := range keys {
		var slot **Entry
		switch k.Name {
		case names.Key1:
			slot = &inv.Key1
		case names.Key2:
			slot = &inv.Key2
		case names.Legacy:
			slot = &inv.Legacy
		default:
			continue
		}
		if *slot != nil {
			return Inventory{}, fmt.Errorf("%w: public key name %s registered twice", ErrInvariant, k.Name)
		}
		*slot = &Entry{PublicKey: k}
	}
	return inv, nil
}

func (inv Inventory) State() State {
	switch {
	case inv.Key1 != nil && inv.Key2 != nil:
		return StateTwoKeys
	case inv.Key1 != nil || inv.Key2 != nil:
		return StateOneKey
	}
	return StateNone
}

// Plan is the decision of one rotation run.
type Plan struct {
	State State
	// Target is the slot name the new key is registered under.
	Target string
	// Replace is deleted before Target is recreated. Set only for two keys.
	Replace *Entry
	// Keep stays trusted for the whole run. Nil when no slot exists.
	Keep *Entry
	// Legacy is deleted once the new key is trusted.
	Legacy *Entry
}

// Decide picks the slot to (re)create. With both slots present the older one
// is replaced, unless it is activeKeyID, in which case the newer one is.
func Decide(inv Inventory, activeKeyID string) (Plan, error) {
	p := Plan{State: inv.State(), Legacy: inv.Legacy}

	switch p.State {
	case StateNone:
		p.Target = inv.Names.Key1
	case StateOneKey:
		if inv.Key1 != nil {
			p.Target, p.Keep = inv.Names.Key2, inv.Key1
		} else {
			p.Target, p.Keep = inv.Names.Key1, inv.Key2
		}
	case StateTwoKeys:
		older, newer := inv.Key1, inv.Key2
		if inv.Key1.CreatedAt.After(inv.Key2.CreatedAt) {
			older, newer = inv.Key2, inv.Key1
		}
		if activeKeyID != "" && older.ID == activeKeyID {
			older, newer = newer, older
		}
		p.Target, p.Replace, p.Keep = older.Name, older, newer
	}

	if err := p.Validate(inv.Names); err != nil {
		return Plan{}, err
	}
	return p, nil
}

// TrustBeforeDelete is the group content while the replaced key is deleted.
// Nil when nothing is replaced.
func (p Plan) TrustBeforeDelete() []string {
	if p.Replace == nil {
		return nil
	}
	return []string{p.Keep.ID}
}

// TrustAfterCreate is the final group content: the kept key, if any, plus the
// new one.
func (p Plan) TrustAfterCreate(newKeyID string) []string {
	if p.Keep == nil {
		return []string{newKeyID}
	}
	return []string{p.Keep.ID, newKeyID}
}

// Validate asserts the zero-downtime invariants of the plan.
func (p Plan) Validate(names SlotNames) error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: "+format, append([]any{ErrInvariant}, args...)...)
	}

	if p.Target != names.Key1 && p.Target != names.Key2 {
		return fail("target %q is not a rotation slot", p.Target)
	}
	if (p.State == StateNone) != (p.Keep == nil) {
		return fail("state %s with kept key %v", p.State, p.Keep != nil)
	}
	if (p.State == StateTwoKeys) != (p.Replace != nil) {
		return fail("state %s with replaced key %v", p.State, p.Replace != nil)
	}
	if p.Keep != nil && p.Keep.Name == p.Target {
		return fail("kept key %s occupies target slot", p.Keep.ID)
	}
	if p.Replace != nil {
		if p.Replace.Name != p.Target {
			return fail("replaced key %s is not in target slot %s", p.Replace.ID, p.Target)
		}
		if p.Replace.ID == p.Keep.ID {
			return fail("key %s both kept and replaced", p.Keep.ID)
		}
		before := p.TrustBeforeDelete()
		if len(before) == 0 || slices.Contains(before, p.Replace.ID) {
			return fail("group would trust %v while deleting %s", before, p.Replace.ID)
		}
	}
	after := p.TrustAfterCreate("new")
	if p.Keep != nil && !slices.Contains(after, p.Keep.ID) {
		return fail("kept key %s dropped from trust", p.Keep.ID)
	}
	return nil
}

// KeptID returns the kept key id or "".
func (p Plan) KeptID() string {
	if p.Keep == nil {
		return ""
	}
	return p.Keep.ID
}
