package localstore

import (
	"context"
	"errors"

	"github.com/target/opsconsole/internal/ports"
)

// Artifacts clears everything the console client keeps for a session.
type Artifacts struct {
	Store *FileStore
	Jar   *CookieJar
}

var _ ports.SessionArtifacts = (*Artifacts)(nil)

// Clear removes the credentials file and every provider-domain cookie.
func (a *Artifacts) Clear(ctx context.Context) error {
	var errs []error
	if a.Store != nil {
		errs = append(errs, a.Store.Delete(ctx))
	}
	if a.Jar != nil {
		errs = append(errs, a.Jar.Reset())
	}
	return errors.Join(errs...)
}
