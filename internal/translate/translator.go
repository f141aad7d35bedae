// Package translate converts text between supported languages, pivoting
// through English and installing per-pair packages on first use.
package translate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"multirag/internal/domain"
)

// Package is an installable translation model for one language pair.
type Package struct {
	From    string
	To      string
	Version string
	Links   []string
}

// Registry resolves language pairs to installable packages.
type Registry interface {
	Lookup(ctx context.Context, pair domain.LanguagePair) (Package, error)
}

// Installer installs packages. Installing an installed package is a no-op.
type Installer interface {
	Installed(pkg Package) bool
	Install(ctx context.Context, pkg Package) error
}

// Engine performs the actual translation once a pair is installed.
type Engine interface {
	Translate(ctx context.Context, text, from, to string) (string, error)
}

// PairState tracks installation of one language pair.
type PairState int

const (
	NotInstalled PairState = iota
	Installing
	Installed
)

func (s PairState) String() string {
	switch s {
	case Installing:
		return "installing"
	case Installed:
		return "installed"
	default:
		return "not-installed"
	}
}

// DefaultInstallTimeout bounds one shared package install.
const DefaultInstallTimeout = 10 * time.Minute

// Translator implements domain.Translator.
type Translator struct {
	registry       Registry
	installer      Installer
	engine         Engine
	codes          map[string]struct{}
	log            *zap.Logger
	installTimeout time.Duration

	mu     sync.Mutex
	states map[domain.LanguagePair]PairState
	group  singleflight.Group
}

// Option configures a Translator.
type Option func(*Translator)

// WithInstallTimeout bounds package installs. Installs are shared between
// requests, so this bound replaces the caller's deadline.
func WithInstallTimeout(d time.Duration) Option {
	return func(t *Translator) {
		if d > 0 {
			t.installTimeout = d
		}
	}
}

// New returns a Translator accepting the given ISO codes.
func New(registry Registry, installer Installer, engine Engine, codes []string, log *zap.Logger, opts ...Option) *Translator {
	if log == nil {
		log = zap.NewNop()
	}
	known := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		known[c] = struct{}{}
	}
	t := &Translator{
		registry:       registry,
		installer:      installer,
		engine:         engine,
		codes:          known,
		log:            log,
		installTimeout: DefaultInstallTimeout,
		states:         make(map[domain.LanguagePair]PairState),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Translate converts text from one code to another. Identical codes return
// text unchanged; pairs without English run as two legs through English.
func (t *Translator) Translate(ctx context.Context, text, from, to string) (string, error) {
	for _, code := range []string{from, to} {
		if _, ok := t.codes[code]; !ok {
			return "", domain.ConfigurationError("unsupported language code %q", code)
		}
	}
	if from == to {
		return text, nil
	}
	if from != domain.PivotCode && to != domain.PivotCode {
		english, err := t.leg(ctx, text, domain.LanguagePair{From: from, To: domain.PivotCode})
		if err != nil {
			return "", err
		}
		return t.leg(ctx, english, domain.LanguagePair{From: domain.PivotCode, To: to})
	}
	return t.leg(ctx, text, domain.LanguagePair{From: from, To: to})
}

// State reports the installation state of pair.
func (t *Translator) State(pair domain.LanguagePair) PairState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.states[pair]
}

func (t *Translator) leg(ctx context.Context, text string, pair domain.LanguagePair) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", domain.TranslationFailed(pair, err)
	}
	if err := t.ensure(ctx, pair); err != nil {
		return "", domain.TranslationFailed(pair, err)
	}
	out, err := t.engine.Translate(ctx, text, pair.From, pair.To)
	if err != nil {
		return "", domain.TranslationFailed(pair, err)
	}
	return out, nil
}

// ensure installs pair once for all concurrent callers. The install is
// detached from any one caller's cancellation; each caller only stops waiting.
func (t *Translator) ensure(ctx context.Context, pair domain.LanguagePair) error {
	if t.State(pair) == Installed {
		return nil
	}
	ch := t.group.DoChan(pair.String(), func() (any, error) {
		if t.State(pair) == Installed {
			return nil, nil
		}
		t.setState(pair, Installing)
		ictx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.installTimeout)
		defer cancel()
		err := t.install(ictx, pair)
		if err != nil {
			t.setState(pair, NotInstalled)
			return nil, err
		}
		t.setState(pair, Installed)
		return nil, nil
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

func (t *Translator) install(ctx context.Context, pair domain.LanguagePair) error {
	pkg, err := t.registry.Lookup(ctx, pair)
	if err != nil {
		return fmt.Errorf("resolve package: %w", err)
	}
	if t.installer.Installed(pkg) {
		t.log.Debug("translation package already installed", zap.Stringer("pair", pair), zap.String("version", pkg.Version))
		return nil
	}
	t.log.Info("installing translation package", zap.Stringer("pair", pair), zap.String("version", pkg.Version))
	if err := t.installer.Install(ctx, pkg); err != nil {
		return fmt.Errorf("install package: %w", err)
	}
	return nil
}

func (t *Translator) setState(pair domain.LanguagePair, s PairState) {
	t.mu.Lock()
	t.states[pair] = s
	t.mu.Unlock()
}

// ErrPackageNotFound is returned by registries that have no package for a pair.
var ErrPackageNotFound = errors.New("translation package not found")
