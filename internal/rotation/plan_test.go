package rotation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/edgegate/internal/cdn"
)

var names = Names("edge")

func entry(id, name string, created time.Time) cdn.PublicKey {
	return cdn.PublicKey{ID: id, Name: name, CreatedAt: created}
}

func inventory(t *testing.T, keys ...cdn.PublicKey) Inventory {
	t.Helper()
	inv, err := NewInventory(names, keys)
	require.NoError(t, err)
	return inv
}

func TestDecide_States(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(24 * time.Hour)

	cases := []struct {
		name       string
		keys       []cdn.PublicKey
		active     string
		state      State
		target     string
		keep       string
		replace    string
		before     []string
		after      []string
		withLegacy bool
	}{
		{
			name:   "none",
			state:  StateNone,
			target: names.Key1,
			after:  []string{"NEW"},
		},
		{
			name:       "none with legacy",
			keys:       []cdn.PublicKey{entry("KD", names.Legacy, t0)},
			state:      StateNone,
			target:     names.Key1,
			after:      []string{"NEW"},
			withLegacy: true,
		},
		{
			name:   "only key 1",
			keys:   []cdn.PublicKey{entry("K1", names.Key1, t0)},
			state:  StateOneKey,
			target: names.Key2,
			keep:   "K1",
			after:  []string{"K1", "NEW"},
		},
		{
			name:   "only key 2",
			keys:   []cdn.PublicKey{entry("K2", names.Key2, t0)},
			state:  StateOneKey,
			target: names.Key1,
			keep:   "K2",
			after:  []string{"K2", "NEW"},
		},
		{
			name:    "key 1 older",
			keys:    []cdn.PublicKey{entry("K1", names.Key1, t0), entry("K2", names.Key2, t1)},
			state:   StateTwoKeys,
			target:  names.Key1,
			keep:    "K2",
			replace: "K1",
			before:  []string{"K2"},
			after:   []string{"K2", "NEW"},
		},
		{
			name:    "key 2 older",
			keys:    []cdn.PublicKey{entry("K1", names.Key1, t1), entry("K2", names.Key2, t0)},
			state:   StateTwoKeys,
			target:  names.Key2,
			keep:    "K1",
			replace: "K2",
			before:  []string{"K1"},
			after:   []string{"K1", "NEW"},
		},
		{
			name:    "same age replaces key 1",
			keys:    []cdn.PublicKey{entry("K1", names.Key1, t0), entry("K2", names.Key2, t0)},
			state:   StateTwoKeys,
			target:  names.Key1,
			keep:    "K2",
			replace: "K1",
			before:  []string{"K2"},
			after:   []string{"K2", "NEW"},
		},
		{
			name:    "older key is active",
			keys:    []cdn.PublicKey{entry("K1", names.Key1, t0), entry("K2", names.Key2, t1)},
			active:  "K1",
			state:   StateTwoKeys,
			target:  names.Key2,
			keep:    "K1",
			replace: "K2",
			before:  []string{"K1"},
			after:   []string{"K1", "NEW"},
		},
		{
			name:    "newer key is active",
			keys:    []cdn.PublicKey{entry("K1", names.Key1, t0), entry("K2", names.Key2, t1)},
			active:  "K2",
			state:   StateTwoKeys,
			target:  names.Key1,
			keep:    "K2",
			replace: "K1",
			before:  []string{"K2"},
			after:   []string{"K2", "NEW"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := Decide(inventory(t, tc.keys...), tc.active)
			require.NoError(t, err)
			require.Equal(t, tc.state, p.State)
			require.Equal(t, tc.target, p.Target)
			require.Equal(t, tc.keep, p.KeptID())
			if tc.replace == "" {
				require.Nil(t, p.Replace)
			} else {
				require.Equal(t, tc.replace, p.Replace.ID)
			}
			require.Equal(t, tc.before, p.TrustBeforeDelete())
			require.Equal(t, tc.after, p.TrustAfterCreate("NEW"))
			require.Equal(t, tc.withLegacy, p.Legacy != nil)
		})
	}
}

func TestNewInventory_IgnoresForeignKeys(t *testing.T) {
	inv := inventory(t, entry("KX", "other-KEY_1", time.Now()), entry("K1", names.Key1, time.Now()))
	require.Equal(t, StateOneKey, inv.State())
	require.Equal(t, "K1", inv.Key1.ID)
}

func TestNewInventory_DuplicateSlot(t *testing.T) {
	_, err := NewInventory(names, []cdn.PublicKey{
		entry("K1", names.Key1, time.Now()),
		entry("K9", names.Key1, time.Now()),
	})
	require.ErrorIs(t, err, ErrInvariant)
}

func TestPlanValidate_RejectsBrokenPlans(t *testing.T) {
	k1 := &Entry{PublicKey: entry("K1", names.Key1, time.Now())}
	k2 := &Entry{PublicKey: entry("K2", names.Key2, time.Now())}

	broken := []Plan{
		{State: StateNone, Target: "edge-KEY_3"},
		{State: StateNone, Target: names.Key1, Keep: k2},
		{State: StateOneKey, Target: names.Key2},
		{State: StateOneKey, Target: names.Key1, Keep: k1},
		{State: StateTwoKeys, Target: names.Key1, Keep: k2},
		{State: StateTwoKeys, Target: names.Key2, Keep: k2, Replace: k1},
		{State: StateTwoKeys, Target: names.Key1, Keep: k1, Replace: k1},
		{State: StateOneKey, Target: names.Key2, Keep: k1, Replace: k2},
	}
	for i, p := range broken {
		require.ErrorIs(t, p.Validate(names), ErrInvariant, "plan %d", i)
	}
}

func TestStateString(t *testing.T) {
	require.Equal(t, "none", StateNone.String())
	require.Equal(t, "one-key", StateOneKey.String())
	require.Equal(t, "two-keys", StateTwoKeys.String())
	require.Equal(t, "State(7)", State(7).String())
}
