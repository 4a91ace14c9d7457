package vault

import (
	"context"

	"github/chapool/cardano-vault/internal/cardano/keychain"
	"github/chapool/cardano-vault/internal/util"
)

// releaseSet tracks every key handle obtained during one operation so that
// all of them are released exactly once on every exit path, including handles
// introduced by user-supplied hooks.
type releaseSet struct {
	handles []keychain.PrivateKey
}

func newReleaseSet() *releaseSet {
	return &releaseSet{}
}

// track adds handles to the set, skipping nils and handles already tracked.
func (r *releaseSet) track(handles ...keychain.PrivateKey) {
	for _, handle := range handles {
		if handle == nil {
			continue
		}

		tracked := false
		for _, existing := range r.handles {
			if existing == handle {
				tracked = true
				break
			}
		}

		if !tracked {
			r.handles = append(r.handles, handle)
		}
	}
}

// freeAll releases every tracked handle. Failures during release are logged
// and swallowed, never propagated into the operation result.
func (r *releaseSet) freeAll(ctx context.Context) {
	for _, handle := range r.handles {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					util.LogFromContext(ctx).Error().Interface("panic", rec).Msg("Recovered panic while releasing key handle")
				}
			}()

			handle.Free()
		}()
	}

	r.handles = nil
}
