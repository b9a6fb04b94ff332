package rotation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/edgegate/internal/cdn"
	"github.com/dropDatabas3/edgegate/internal/keys"
	"github.com/dropDatabas3/edgegate/internal/metrics"
	"github.com/dropDatabas3/edgegate/internal/store"
)

const (
	secretID    = "edge-signing-key"
	activeParam = "edge-cloudfront-keypair-id"
)

var (
	poolOnce sync.Once
	pool     []*keys.KeyPair
)

// keyPool pre-generates a few pairs so runs do not each pay for RSA generation.
func keyPool(t *testing.T) func() (*keys.KeyPair, error) {
	t.Helper()
	poolOnce.Do(func() {
		for i := 0; i < 3; i++ {
			kp, err := keys.Generate()
			require.NoError(t, err)
			pool = append(pool, kp)
		}
	})
	var (
		mu sync.Mutex
		n  int
	)
	return func() (*keys.KeyPair, error) {
		mu.Lock()
		defer mu.Unlock()
		kp := pool[n%len(pool)]
		n++
		return kp, nil
	}
}

// journal records calls across the registry and the stores in one sequence.
type journal struct {
	mu    sync.Mutex
	calls []string
}

func (j *journal) add(s string) {
	j.mu.Lock()
	j.calls = append(j.calls, s)
	j.mu.Unlock()
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.calls...)
}

type recordingRegistry struct {
	*cdn.Memory
	j *journal
}

func (r recordingRegistry) CreatePublicKey(ctx context.Context, name, ref, pem string) (cdn.PublicKey, error) {
	pk, err := r.Memory.CreatePublicKey(ctx, name, ref, pem)
	if err == nil {
		r.j.add("create:" + name)
	}
	return pk, err
}

func (r recordingRegistry) DeletePublicKey(ctx context.Context, id, etag string) error {
	err := r.Memory.DeletePublicKey(ctx, id, etag)
	if err == nil {
		r.j.add("delete:" + id)
	}
	return err
}

func (r recordingRegistry) UpdateKeyGroup(ctx context.Context, g cdn.KeyGroup, etag string) (string, error) {
	next, err := r.Memory.UpdateKeyGroup(ctx, g, etag)
	if err == nil {
		r.j.add("group:" + strings.Join(g.Items, ","))
	}
	return next, err
}

type recordingStore struct {
	*store.Memory
	j         *journal
	secretErr error
}

func (s *recordingStore) PutSecret(ctx context.Context, id, value string) error {
	if s.secretErr != nil {
		return s.secretErr
	}
	s.j.add("secret:" + id)
	return s.Memory.PutSecret(ctx, id, value)
}

func (s *recordingStore) PutParameter(ctx context.Context, name, value string) error {
	s.j.add("parameter:" + name + "=" + value)
	return s.Memory.PutParameter(ctx, name, value)
}

type env struct {
	reg     *cdn.Memory
	store   *recordingStore
	j       *journal
	groupID string
	rot     *Rotator
}

// newEnv provisions a key group trusting only the legacy placeholder key.
func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	reg := cdn.NewMemory()
	dummy, err := reg.CreatePublicKey(ctx, names.Legacy, "provisioning", "placeholder")
	require.NoError(t, err)
	groupID := reg.AddKeyGroup("edge-group", dummy.ID)

	j := &journal{}
	st := &recordingStore{Memory: store.NewMemory(), j: j}
	rot, err := New(recordingRegistry{Memory: reg, j: j}, st, st, Config{
		KeyGroupID:         groupID,
		SecretID:           secretID,
		ActiveKeyParameter: activeParam,
		Names:              names,
	}, WithKeyGenerator(keyPool(t)))
	require.NoError(t, err)
	return &env{reg: reg, store: st, j: j, groupID: groupID, rot: rot}
}

func (e *env) trusted(t *testing.T) []string {
	t.Helper()
	g, _, err := e.reg.GetKeyGroup(context.Background(), e.groupID)
	require.NoError(t, err)
	return g.Items
}

func (e *env) keyNames(t *testing.T) []string {
	t.Helper()
	list, err := e.reg.ListPublicKeys(context.Background())
	require.NoError(t, err)
	out := make([]string, 0, len(list))
	for _, k := range list {
		out = append(out, k.Name)
	}
	return out
}

func (e *env) active(t *testing.T) string {
	t.Helper()
	v, err := e.store.GetParameter(context.Background(), activeParam, false)
	require.NoError(t, err)
	return v
}

func TestRun_FirstRunReplacesPlaceholder(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	res, err := e.rot.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, StateNone, res.State)
	require.True(t, res.LegacyDeleted)
	require.Equal(t, names.Key1, res.Created.Name)
	require.Equal(t, []string{res.Created.ID}, e.trusted(t))
	require.Equal(t, []string{names.Key1}, e.keyNames(t))
	require.Equal(t, res.Created.ID, e.active(t))

	// The stored private key matches the registered public key.
	priv, err := e.store.GetParameter(ctx, store.SecretReferencePrefix+secretID, true)
	require.NoError(t, err)
	pk, err := keys.DecodeRSAPrivateKey(priv)
	require.NoError(t, err)
	encoded, ok := e.reg.EncodedKey(res.Created.ID)
	require.True(t, ok)
	pub, err := keys.DecodeRSAPublicKey(encoded)
	require.NoError(t, err)
	require.True(t, pk.PublicKey.Equal(pub))
}

func TestRun_Idempotence(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.rot.Run(ctx)
	require.NoError(t, err)

	for run := 2; run <= 5; run++ {
		res, err := e.rot.Run(ctx)
		require.NoError(t, err, "run %d", run)

		trusted := e.trusted(t)
		require.Len(t, trusted, 2, "run %d", run)
		require.NotEqual(t, trusted[0], trusted[1])
		require.Contains(t, trusted, res.Created.ID)
		require.Equal(t, res.Created.ID, e.active(t))

		kn := e.keyNames(t)
		require.ElementsMatch(t, []string{names.Key1, names.Key2}, kn, "run %d", run)
	}
}

func TestRun_AlternatesSlots(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	var created []string
	for i := 0; i < 4; i++ {
		res, err := e.rot.Run(ctx)
		require.NoError(t, err)
		created = append(created, res.Created.Name)
	}
	require.Equal(t, []string{names.Key1, names.Key2, names.Key1, names.Key2}, created)
}

func TestRun_Ordering(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	first, err := e.rot.Run(ctx)
	require.NoError(t, err)
	second, err := e.rot.Run(ctx)
	require.NoError(t, err)

	before := len(e.j.list())
	third, err := e.rot.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, first.Created.ID, third.ReplacedID)
	require.Equal(t, second.Created.ID, third.KeptID)

	kept, old, fresh := second.Created.ID, first.Created.ID, third.Created.ID
	require.Equal(t, []string{
		"group:" + kept,
		"delete:" + old,
		"create:" + names.Key1,
		"group:" + kept + "," + fresh,
		"secret:" + secretID,
		"parameter:" + activeParam + "=" + fresh,
	}, e.j.list()[before:])
}

func TestRun_LegacyDeletedLast(t *testing.T) {
	e := newEnv(t)
	legacy, err := e.reg.ListPublicKeys(context.Background())
	require.NoError(t, err)
	require.Len(t, legacy, 1)

	res, err := e.rot.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{
		"create:" + names.Key1,
		"group:" + res.Created.ID,
		"secret:" + secretID,
		"parameter:" + activeParam + "=" + res.Created.ID,
		"delete:" + legacy[0].ID,
	}, e.j.list())
}

func TestRun_ActiveKeyGuard(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	first, err := e.rot.Run(ctx)
	require.NoError(t, err)
	second, err := e.rot.Run(ctx)
	require.NoError(t, err)

	// Something rolled the published id back to the older key.
	require.NoError(t, e.store.Memory.PutParameter(ctx, activeParam, first.Created.ID))

	third, err := e.rot.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, second.Created.ID, third.ReplacedID)
	require.Equal(t, first.Created.ID, third.KeptID)
	require.Equal(t, names.Key2, third.Created.Name)
}

func TestRun_SecretFailureKeepsOldParameter(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	first, err := e.rot.Run(ctx)
	require.NoError(t, err)

	failures := testutil.ToFloat64(metrics.RotationRuns.WithLabelValues("error"))
	e.store.secretErr = errors.New("AccessDeniedException")
	_, err = e.rot.Run(ctx)
	require.Error(t, err)
	require.Equal(t, failures+1, testutil.ToFloat64(metrics.RotationRuns.WithLabelValues("error")))
	require.Equal(t, first.Created.ID, e.active(t))

	// The next run starts over from the registry.
	e.store.secretErr = nil
	res, err := e.rot.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, StateTwoKeys, res.State)
	require.Equal(t, first.Created.ID, res.KeptID)
	require.Len(t, e.trusted(t), 2)
}

func TestInspect_DoesNotMutate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, err := e.rot.Run(ctx)
	require.NoError(t, err)
	before := e.j.list()

	p, err := e.rot.Inspect(ctx)
	require.NoError(t, err)
	require.Equal(t, StateOneKey, p.State)
	require.Equal(t, names.Key2, p.Target)
	require.Equal(t, before, e.j.list())
}

type failingRegistry struct {
	*cdn.Memory
}

func (failingRegistry) ListPublicKeys(context.Context) ([]cdn.PublicKey, error) {
	return nil, fmt.Errorf("cdn: list public keys: %w", errors.New("throttled"))
}

func TestRun_ListFailureAborts(t *testing.T) {
	st := store.NewMemory()
	rot, err := New(failingRegistry{cdn.NewMemory()}, st, st, Config{
		KeyGroupID: "G1", SecretID: secretID, ActiveKeyParameter: activeParam, Names: names,
	}, WithKeyGenerator(keyPool(t)))
	require.NoError(t, err)

	_, err = rot.Run(context.Background())
	require.ErrorContains(t, err, "throttled")
	require.Empty(t, st.Journal())
}

func TestNew_ValidatesConfig(t *testing.T) {
	st := store.NewMemory()
	_, err := New(cdn.NewMemory(), st, st, Config{Names: names})
	require.Error(t, err)
}
