// Package rotation rotates the CloudFront signing key across two named slots
// without a window in which valid cookies stop being trusted.
//
// A run derives its state from the registry, never from local records, so a
// failed run is retried by simply running again. Runs must not overlap.
package rotation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dropDatabas3/edgegate/internal/cdn"
	"github.com/dropDatabas3/edgegate/internal/keys"
	"github.com/dropDatabas3/edgegate/internal/metrics"
	"github.com/dropDatabas3/edgegate/internal/observability/logger"
	"github.com/dropDatabas3/edgegate/internal/store"
)

type Config struct {
	KeyGroupID string
	SecretID   string
	// ActiveKeyParameter receives the new key id once the private key is stored.
	ActiveKeyParameter string
	Names              SlotNames
}

func (c Config) validate() error {
	switch {
	case c.KeyGroupID == "":
		return errors.New("rotation: key group id is required")
	case c.SecretID == "":
		return errors.New("rotation: secret id is required")
	case c.ActiveKeyParameter == "":
		return errors.New("rotation: active key parameter is required")
	case c.Names.Key1 == "" || c.Names.Key2 == "":
		return errors.New("rotation: slot names are required")
	}
	return nil
}

type Rotator struct {
	registry cdn.Registry
	params   store.Params
	secrets  store.Secrets
	cfg      Config

	generate  func() (*keys.KeyPair, error)
	callerRef func() string
}

type Option func(*Rotator)

// WithKeyGenerator replaces keys.Generate.
func WithKeyGenerator(fn func() (*keys.KeyPair, error)) Option {
	return func(r *Rotator) { r.generate = fn }
}

// WithCallerReference replaces the uuid caller reference source.
func WithCallerReference(fn func() string) Option {
	return func(r *Rotator) { r.callerRef = fn }
}

func New(registry cdn.Registry, params store.Params, secrets store.Secrets, cfg Config, opts ...Option) (*Rotator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	r := &Rotator{
		registry:  registry,
		params:    params,
		secrets:   secrets,
		cfg:       cfg,
		generate:  keys.Generate,
		callerRef: func() string { return uuid.NewString() },
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Result summarizes a completed run. It never carries key material.
type Result struct {
	State         State
	Created       cdn.PublicKey
	ReplacedID    string
	KeptID        string
	TrustedKeyIDs []string
	LegacyDeleted bool
	Duration      time.Duration
}

// Inspect reads the registry and returns the plan a run would execute.
func (r *Rotator) Inspect(ctx context.Context) (Plan, error) {
	list, err := r.registry.ListPublicKeys(ctx)
	if err != nil {
		return Plan{}, err
	}
	inv, err := NewInventory(r.cfg.Names, list)
	if err != nil {
		return Plan{}, err
	}

	if inv.State() == StateTwoKeys {
		for _, e := range []*Entry{inv.Key1, inv.Key2} {
			if err := r.refresh(ctx, e); err != nil {
				return Plan{}, err
			}
		}
	}

	active, err := r.params.GetParameter(ctx, r.cfg.ActiveKeyParameter, false)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return Plan{}, fmt.Errorf("rotation: read active key parameter: %w", err)
	}
	return Decide(inv, active)
}

// refresh loads the ETag and creation time of e.
func (r *Rotator) refresh(ctx context.Context, e *Entry) error {
	pk, etag, err := r.registry.GetPublicKey(ctx, e.ID)
	if err != nil {
		return err
	}
	if !pk.CreatedAt.IsZero() {
		e.CreatedAt = pk.CreatedAt
	}
	e.ETag = etag
	return nil
}

// Run performs one rotation. Any failure aborts the run; steps already
// committed stay committed.
func (r *Rotator) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	log := logger.From(ctx).With(
		logger.Layer("rotation"),
		logger.Component("rotator"),
		logger.KeyGroupID(r.cfg.KeyGroupID),
	)
	ctx = logger.ToContext(ctx, log)

	res, err := r.run(ctx, log)
	if err != nil {
		metrics.RotationRuns.WithLabelValues("error").Inc()
		log.Error("rotation failed", logger.Err(err), logger.Duration(time.Since(start)))
		return nil, err
	}
	res.Duration = time.Since(start)
	metrics.RotationRuns.WithLabelValues("ok").Inc()
	log.Info("rotation completed",
		logger.String("state", res.State.String()),
		logger.KeyID(res.Created.ID),
		logger.KeyIDs(res.TrustedKeyIDs),
		logger.Duration(res.Duration),
	)
	return res, nil
}

func (r *Rotator) run(ctx context.Context, log *zap.Logger) (*Result, error) {
	plan, err := r.Inspect(ctx)
	if err != nil {
		return nil, err
	}
	log.Info("rotation planned",
		logger.String("state", plan.State.String()),
		logger.KeyName(plan.Target),
		logger.Bool("legacy", plan.Legacy != nil),
	)

	kp, err := r.generate()
	if err != nil {
		return nil, fmt.Errorf("rotation: generate key: %w", err)
	}

	res := &Result{State: plan.State, KeptID: plan.KeptID()}

	if plan.Replace != nil {
		if err := r.setTrusted(ctx, plan.TrustBeforeDelete()); err != nil {
			return nil, err
		}
		if err := r.registry.DeletePublicKey(ctx, plan.Replace.ID, plan.Replace.ETag); err != nil {
			return nil, err
		}
		step("delete-replaced")
		res.ReplacedID = plan.Replace.ID
		log.Info("old public key deleted", logger.KeyName(plan.Replace.Name), logger.KeyID(plan.Replace.ID))
	}

	created, err := r.registry.CreatePublicKey(ctx, plan.Target, r.callerRef(), kp.PublicPEM)
	if err != nil {
		return nil, err
	}
	step("create")
	res.Created = created
	log.Info("new public key created", logger.KeyName(plan.Target), logger.KeyID(created.ID))

	res.TrustedKeyIDs = plan.TrustAfterCreate(created.ID)
	if err := r.setTrusted(ctx, res.TrustedKeyIDs); err != nil {
		return nil, err
	}

	// The parameter is what the authorizer picks up, so it follows the secret.
	if err := r.secrets.PutSecret(ctx, r.cfg.SecretID, kp.PrivatePEM); err != nil {
		return nil, fmt.Errorf("rotation: store private key: %w", err)
	}
	step("store-secret")
	if err := r.params.PutParameter(ctx, r.cfg.ActiveKeyParameter, created.ID); err != nil {
		return nil, fmt.Errorf("rotation: publish key id: %w", err)
	}
	step("publish-key-id")
	log.Info("active key published", logger.Parameter(r.cfg.ActiveKeyParameter), logger.KeyID(created.ID))

	if plan.Legacy != nil {
		if err := r.refresh(ctx, plan.Legacy); err != nil {
			return nil, err
		}
		if err := r.registry.DeletePublicKey(ctx, plan.Legacy.ID, plan.Legacy.ETag); err != nil {
			return nil, err
		}
		step("delete-legacy")
		res.LegacyDeleted = true
		log.Info("legacy public key deleted", logger.KeyName(plan.Legacy.Name), logger.KeyID(plan.Legacy.ID))
	}
	return res, nil
}

// setTrusted replaces the key group items, keeping its name and comment.
func (r *Rotator) setTrusted(ctx context.Context, items []string) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: empty trusted key set", ErrInvariant)
	}
	group, etag, err := r.registry.GetKeyGroup(ctx, r.cfg.KeyGroupID)
	if err != nil {
		return err
	}
	group.Items = items
	if _, err := r.registry.UpdateKeyGroup(ctx, group, etag); err != nil {
		return err
	}
	step("update-group")
	logger.From(ctx).Info("trusted key group updated", logger.KeyIDs(items))
	return nil
}

func step(name string) { metrics.RotationSteps.WithLabelValues(name).Inc() }
