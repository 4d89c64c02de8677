package cmd

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	domainauth "github.com/target/opsconsole/internal/domain/auth"
	"github.com/target/opsconsole/internal/ports"
	"github.com/target/opsconsole/internal/session"
)

// terminalNavigator renders redirects as terminal output.
type terminalNavigator struct {
	out          io.Writer
	loginSurface string

	mu         sync.Mutex
	lastReason string
	signedOut  bool
}

var _ ports.Navigator = (*terminalNavigator)(nil)

func (n *terminalNavigator) Redirect(_ context.Context, target string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if reason, ok := n.logoutReason(target); ok {
		n.signedOut = true
		n.lastReason = reason
		switch reason {
		case "":
			_, err := fmt.Fprintln(n.out, "Signed out.")
			return err
		default:
			_, err := fmt.Fprintf(n.out, "Signed out: %s. Run `opsctl login` to sign in again.\n", reasonText(reason))
			return err
		}
	}

	if u, err := url.Parse(target); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		_, err = fmt.Fprintf(n.out, "Open this URL in your browser to sign in:\n\n  %s\n\n", target)
		return err
	}

	_, err := fmt.Fprintf(n.out, "Signed in; continuing to %s\n", target)
	return err
}

// logoutReason reports whether target is the login surface and returns its ?reason=.
func (n *terminalNavigator) logoutReason(target string) (string, bool) {
	if n.loginSurface == "" || !strings.HasPrefix(target, n.loginSurface) {
		return "", false
	}
	u, err := url.Parse(target)
	if err != nil {
		return "", true
	}
	return u.Query().Get("reason"), true
}

// SignedOut returns whether a logout redirect was rendered and its reason.
func (n *terminalNavigator) SignedOut() (bool, string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.signedOut, n.lastReason
}

func reasonText(reason string) string {
	switch reason {
	case session.ReasonUnauthorized:
		return "your account is not authorized for opsconsole"
	case session.ReasonSessionExpired:
		return "your session expired"
	default:
		return reason
	}
}

func describeRejection(rej *domainauth.Rejection) string {
	switch rej.Kind {
	case domainauth.FailureNoLocalAccount:
		if rej.Email != "" {
			return fmt.Sprintf("no opsconsole account for %s; ask an administrator to add it", rej.Email)
		}
		return "no opsconsole account for this sign-in"
	case domainauth.FailureProviderUnreachable:
		return "identity provider unreachable; try again shortly"
	case domainauth.FailureDirectoryUnavailable:
		return "user directory unavailable; try again shortly"
	case domainauth.FailureIncompleteClaims:
		return "identity provider did not supply an email address"
	case domainauth.FailureInvalidToken, domainauth.FailureMalformedResponse:
		return "sign-in was rejected by the identity provider"
	default:
		return rej.Error()
	}
}

func joinRoles(roles []domainauth.Role) string {
	if len(roles) == 0 {
		return "(none)"
	}
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = string(r)
	}
	return strings.Join(parts, ", ")
}
