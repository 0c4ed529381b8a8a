package identity

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/JaimeStill/triage/pkg/lifecycle"
)

// System turns bearer tokens into actors.
type System interface {
	// Start resolves the issuer's keys through discovery when no JWKS URL
	// is configured, retrying until it succeeds or the lifecycle ends.
	Start(lc *lifecycle.Coordinator) error
	// Ready reports whether tokens can be verified.
	Ready() bool
	// Verify checks a raw ID token and returns its actor.
	Verify(ctx context.Context, rawToken string) (Actor, error)
}

const maxDiscoveryBackoff = time.Minute

type verifier struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.RWMutex
	verifier *oidc.IDTokenVerifier
}

// New creates a verifier for cfg. With a JWKS URL the verifier is usable
// immediately; otherwise Verify returns ErrNotReady until discovery in Start
// succeeds.
func New(cfg *Config, logger *slog.Logger) System {
	v := &verifier{
		cfg:    *cfg,
		logger: logger.With("system", "identity"),
	}

	if cfg.JWKSURL != "" {
		keys := oidc.NewRemoteKeySet(context.Background(), cfg.JWKSURL)
		v.verifier = oidc.NewVerifier(cfg.Issuer, keys, &oidc.Config{ClientID: cfg.ClientID})
	}

	return v
}

// NewWithKeySet creates a verifier over a fixed key set.
func NewWithKeySet(cfg *Config, keys oidc.KeySet, logger *slog.Logger) System {
	return &verifier{
		cfg:      *cfg,
		logger:   logger.With("system", "identity"),
		verifier: oidc.NewVerifier(cfg.Issuer, keys, &oidc.Config{ClientID: cfg.ClientID}),
	}
}

func (v *verifier) Start(lc *lifecycle.Coordinator) error {
	if v.current() != nil {
		return nil
	}

	lc.OnStartup(func() {
		v.discover(lc.Context())
	})

	return nil
}

func (v *verifier) Ready() bool {
	return v.current() != nil
}

// discover blocks until the issuer's discovery document resolves or ctx ends.
func (v *verifier) discover(ctx context.Context) {
	wait := v.cfg.DiscoveryRetryDuration()
	if wait <= 0 {
		wait = time.Second
	}

	for attempt := 1; ; attempt++ {
		provider, err := oidc.NewProvider(ctx, v.cfg.Issuer)
		if err == nil {
			v.mu.Lock()
			v.verifier = provider.Verifier(&oidc.Config{ClientID: v.cfg.ClientID})
			v.mu.Unlock()

			v.logger.Info("issuer discovered", "issuer", v.cfg.Issuer, "attempt", attempt)
			return
		}

		v.logger.Error(
			"issuer discovery failed",
			"issuer", v.cfg.Issuer,
			"attempt", attempt,
			"retry_in", wait,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		wait = min(wait*2, maxDiscoveryBackoff)
	}
}

func (v *verifier) Verify(ctx context.Context, rawToken string) (Actor, error) {
	iv := v.current()
	if iv == nil {
		return Actor{}, ErrNotReady
	}

	token, err := iv.Verify(ctx, rawToken)
	if err != nil {
		return Actor{}, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	var claims map[string]any
	if err := token.Claims(&claims); err != nil {
		return Actor{}, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	actor := Actor{
		ID:   token.Subject,
		Role: roleFrom(claims[v.cfg.RoleClaim]),
	}
	if email, ok := claims["email"].(string); ok {
		actor.Email = email
	}

	if actor.ID == "" {
		return Actor{}, fmt.Errorf("%w: token has no subject", ErrUnauthenticated)
	}

	return actor, nil
}

func (v *verifier) current() *oidc.IDTokenVerifier {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.verifier
}

// roleFrom accepts a single role string or a list of roles. Doctor wins when
// both are present.
func roleFrom(claim any) Role {
	var roles []string

	switch c := claim.(type) {
	case string:
		roles = []string{c}
	case []any:
		for _, r := range c {
			if s, ok := r.(string); ok {
				roles = append(roles, s)
			}
		}
	}

	switch {
	case slices.Contains(roles, string(RoleDoctor)):
		return RoleDoctor
	case slices.Contains(roles, string(RolePatient)):
		return RolePatient
	default:
		return ""
	}
}
