// Package derivation turns a tenant identifier into concrete hierarchical
// derivation indices under one of four interchangeable policies.
package derivation

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Path is a sequence of derivation indices.
type Path []uint32

// Single wraps one index into a Path.
func Single(index uint32) Path {
	return Path{index}
}

// Derivation is a policy for resolving a tenant identifier into a Path.
// Exactly four implementations exist: Constant, Pool, Unique and Custom.
type Derivation interface {
	isDerivation()
}

// Constant resolves to a fixed, tenant-independent path.
type Constant struct {
	Value Path
}

// Pool buckets tenants into a fixed number of slots: the tenant's 16 raw UUID
// bytes are summed and reduced mod Size. Distinct tenants may land in the same
// bucket and thus share derived keys; that collision is an accepted property
// of the strategy, not a defect.
type Pool struct {
	Size int
}

// ScramblerInput is handed to a Unique scrambler alongside the raw path.
type ScramblerInput struct {
	TenantID   string
	Derivation Derivation
}

// Scrambler transforms the 16 raw identifier indices of a Unique resolution.
type Scrambler func(ctx context.Context, path Path, input ScramblerInput) (Path, error)

// Unique resolves to the tenant's 16 raw UUID bytes as 16 non-hardened
// indices, optionally transformed by a Scrambler.
type Unique struct {
	Scrambler Scrambler
}

// ProviderInput is handed to a Custom provider.
type ProviderInput struct {
	TenantID   string
	Derivation Derivation
}

// CustomResult is the outcome of a Custom provider: either a terminal Path or
// a further Derivation to delegate to (Next takes precedence when non-nil).
type CustomResult struct {
	Path Path
	Next Derivation
}

// Provider implements arbitrary user logic for a Custom policy.
type Provider func(ctx context.Context, input ProviderInput) (CustomResult, error)

// Custom delegates resolution entirely to a user-supplied provider. The
// provider may return another Derivation, which is resolved recursively.
type Custom struct {
	Provider Provider
}

func (Constant) isDerivation() {}
func (Pool) isDerivation()     {}
func (Unique) isDerivation()   {}
func (Custom) isDerivation()   {}

// maxCustomDepth bounds recursive Custom delegation. A chain this deep is a
// misconfigured policy, not a legitimate resolution.
const maxCustomDepth = 32

var (
	ErrInvalidTenantID = errors.New("invalid tenant identifier")
	ErrPoolSize        = errors.New("pool size must be positive")
	ErrCustomDepth     = errors.Errorf("custom derivation exceeded %d nested delegations", maxCustomDepth)
	ErrNilDerivation   = errors.New("nil derivation")
	ErrNilProvider     = errors.New("custom derivation without provider")
)

// TenantBytes parses the tenant identifier into its 16 raw bytes. Hyphenated
// and bare 32-char hex forms are accepted, case-insensitively.
func TenantBytes(tenantID string) ([16]byte, error) {
	id, err := uuid.Parse(tenantID)
	if err != nil {
		return [16]byte{}, errors.Wrap(ErrInvalidTenantID, err.Error())
	}

	return [16]byte(id), nil
}

// Resolve resolves the derivation policy for the given tenant into a concrete
// path. Hook panics are recovered and returned as errors; nothing escapes the
// error channel.
func Resolve(ctx context.Context, tenantID string, d Derivation) (path Path, err error) {
	defer func() {
		if r := recover(); r != nil {
			path = nil
			err = errors.Errorf("derivation hook panicked: %v", r)
		}
	}()

	return resolve(ctx, tenantID, d, 0)
}

func resolve(ctx context.Context, tenantID string, d Derivation, depth int) (Path, error) {
	if depth > maxCustomDepth {
		return nil, ErrCustomDepth
	}

	switch policy := d.(type) {
	case Constant:
		return policy.Value, nil

	case Pool:
		if policy.Size <= 0 {
			return nil, ErrPoolSize
		}

		raw, err := TenantBytes(tenantID)
		if err != nil {
			return nil, err
		}

		var sum uint32
		for _, b := range raw {
			sum += uint32(b)
		}

		return Single(sum % uint32(policy.Size)), nil

	case Unique:
		raw, err := TenantBytes(tenantID)
		if err != nil {
			return nil, err
		}

		path := make(Path, len(raw))
		for i, b := range raw {
			path[i] = uint32(b)
		}

		if policy.Scrambler == nil {
			return path, nil
		}

		scrambled, err := policy.Scrambler(ctx, path, ScramblerInput{TenantID: tenantID, Derivation: d})
		if err != nil {
			return nil, err
		}

		return scrambled, nil

	case Custom:
		if policy.Provider == nil {
			return nil, ErrNilProvider
		}

		result, err := policy.Provider(ctx, ProviderInput{TenantID: tenantID, Derivation: d})
		if err != nil {
			return nil, err
		}

		if result.Next != nil {
			return resolve(ctx, tenantID, result.Next, depth+1)
		}

		return result.Path, nil

	case nil:
		return nil, ErrNilDerivation

	default:
		return nil, errors.Errorf("unknown derivation policy %T", d)
	}
}
