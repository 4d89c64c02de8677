package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/target/opsconsole/internal/domain/auth"
	"github.com/target/opsconsole/internal/mocks"
	"go.uber.org/mock/gomock"
)

type validatorFixture struct {
	claims    *mocks.MockClaimsFetcher
	directory *mocks.MockDirectoryResolver
	sink      *countingSink
	validator *TokenValidator
}

func newValidatorFixture(t *testing.T, cfg TokenValidatorConfig) *validatorFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &validatorFixture{
		claims:    mocks.NewMockClaimsFetcher(ctrl),
		directory: mocks.NewMockDirectoryResolver(ctrl),
		sink:      &countingSink{},
	}
	cfg.Metrics = f.sink
	f.validator = NewTokenValidator(TokenValidatorOptions{
		Claims:    f.claims,
		Directory: f.directory,
		Config:    cfg,
	})
	return f
}

type countingSink struct {
	mu   sync.Mutex
	tags []map[string]string
}

func (s *countingSink) Count(name string, _ int64, tags map[string]string) {
	if name != "auth.validate" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tags = append(s.tags, tags)
}

func (s *countingSink) Timing(string, time.Duration, map[string]string) {}

func (s *countingSink) results() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.tags))
	for i, tags := range s.tags {
		out[i] = tags["result"]
	}
	return out
}

func requireRejection(t *testing.T, err error, kind domainauth.FailureKind) *domainauth.Rejection {
	t.Helper()
	require.Error(t, err)
	rej, ok := domainauth.AsRejection(err)
	require.True(t, ok, "expected *Rejection, got %T: %v", err, err)
	assert.Equal(t, kind, rej.Kind)
	return rej
}

func TestNewTokenValidator_RequiresDependencies(t *testing.T) {
	ctrl := gomock.NewController(t)
	assert.Panics(t, func() {
		NewTokenValidator(TokenValidatorOptions{Directory: mocks.NewMockDirectoryResolver(ctrl)})
	})
	assert.Panics(t, func() {
		NewTokenValidator(TokenValidatorOptions{Claims: mocks.NewMockClaimsFetcher(ctrl)})
	})

	v := NewTokenValidator(TokenValidatorOptions{
		Claims:    mocks.NewMockClaimsFetcher(ctrl),
		Directory: mocks.NewMockDirectoryResolver(ctrl),
	})
	assert.Equal(t, defaultClaimsTimeout, v.claimsTimeout)
	assert.Equal(t, defaultDirectoryTimeout, v.directoryTimeout)
}

func TestTokenValidator_EmptyTokenMakesNoCalls(t *testing.T) {
	f := newValidatorFixture(t, TokenValidatorConfig{})

	for _, token := range []string{"", "   "} {
		_, err := f.validator.Validate(context.Background(), token)
		rej := requireRejection(t, err, domainauth.FailureNoToken)
		assert.Equal(t, domainauth.ReasonNoToken, rej.Reason)
		assert.False(t, rej.Transient())
	}
	assert.Equal(t, []string{"rejected", "rejected"}, f.sink.results())
}

func TestTokenValidator_ProviderRejectsToken(t *testing.T) {
	f := newValidatorFixture(t, TokenValidatorConfig{})
	f.claims.EXPECT().FetchClaims(gomock.Any(), "expired-abc").
		Return(domainauth.Claims{}, domainauth.NewFailure(domainauth.FailureInvalidToken, nil, "userinfo status 401"))

	_, err := f.validator.Validate(context.Background(), "expired-abc")
	rej := requireRejection(t, err, domainauth.FailureInvalidToken)
	assert.Equal(t, domainauth.ReasonUpstreamInvalid, rej.Reason)
	assert.False(t, rej.Transient())
}

func TestTokenValidator_NoLocalAccountCarriesEmail(t *testing.T) {
	f := newValidatorFixture(t, TokenValidatorConfig{})
	f.claims.EXPECT().FetchClaims(gomock.Any(), "valid-xyz").
		Return(domainauth.Claims{Subject: "kc-1", Email: "ana@example.org"}, nil)
	f.directory.EXPECT().ResolveUser(gomock.Any(), "ana@example.org").
		Return(domainauth.UserRecord{}, domainauth.ErrUserNotFound)

	_, err := f.validator.Validate(context.Background(), "valid-xyz")
	rej := requireRejection(t, err, domainauth.FailureNoLocalAccount)
	assert.Equal(t, domainauth.ReasonNoLocalAccount, rej.Reason)
	assert.Equal(t, "ana@example.org", rej.Email)
	assert.ErrorIs(t, err, domainauth.ErrUserNotFound)
}

func TestTokenValidator_NoLocalAccountKeepsEmailCase(t *testing.T) {
	f := newValidatorFixture(t, TokenValidatorConfig{})
	f.claims.EXPECT().FetchClaims(gomock.Any(), gomock.Any()).
		Return(domainauth.Claims{Subject: "kc-1", Email: "Ana.Sousa@Example.ORG"}, nil)
	f.directory.EXPECT().ResolveUser(gomock.Any(), "Ana.Sousa@Example.ORG").
		Return(domainauth.UserRecord{}, domainauth.ErrUserNotFound)

	_, err := f.validator.Validate(context.Background(), "valid-case")
	rej := requireRejection(t, err, domainauth.FailureNoLocalAccount)
	assert.Equal(t, "Ana.Sousa@Example.ORG", rej.Email)
}

func TestTokenValidator_SuccessUsesDirectoryRoles(t *testing.T) {
	f := newValidatorFixture(t, TokenValidatorConfig{})
	f.claims.EXPECT().FetchClaims(gomock.Any(), "valid-xyz2").Return(domainauth.Claims{
		Subject:       "kc-2",
		Email:         "ANA@Example.ORG",
		ProviderRoles: []string{"admin"},
	}, nil)
	f.directory.EXPECT().ResolveUser(gomock.Any(), "ANA@Example.ORG").Return(domainauth.UserRecord{
		ID:         "42",
		Email:      "ana@example.org",
		GivenNames: "Ana",
		Surnames:   "Sousa",
		Roles:      []domainauth.Role{domainauth.RoleOperator},
	}, nil)

	identity, err := f.validator.Validate(context.Background(), "valid-xyz2")
	require.NoError(t, err)
	assert.Equal(t, domainauth.Identity{
		ID:                "42",
		Email:             "ana@example.org",
		DisplayName:       "Ana Sousa",
		Roles:             []domainauth.Role{domainauth.RoleOperator},
		ProviderSubjectID: "kc-2",
	}, identity)
	assert.False(t, domainauth.Authorize(&identity, domainauth.RoleAdmin))
	assert.Equal(t, []string{"success"}, f.sink.results())
}

func TestTokenValidator_IncompleteClaimsSkipsDirectory(t *testing.T) {
	f := newValidatorFixture(t, TokenValidatorConfig{})
	f.claims.EXPECT().FetchClaims(gomock.Any(), "valid-noemail").
		Return(domainauth.Claims{Subject: "kc-3"}, nil)

	_, err := f.validator.Validate(context.Background(), "valid-noemail")
	rej := requireRejection(t, err, domainauth.FailureIncompleteClaims)
	assert.Equal(t, domainauth.ReasonIncompleteClaims, rej.Reason)
}

func TestTokenValidator_BlankEmailIsIncompleteClaims(t *testing.T) {
	f := newValidatorFixture(t, TokenValidatorConfig{})
	f.claims.EXPECT().FetchClaims(gomock.Any(), "valid-blank").
		Return(domainauth.Claims{Subject: "kc-4", Email: "  \t "}, nil)

	_, err := f.validator.Validate(context.Background(), "valid-blank")
	rej := requireRejection(t, err, domainauth.FailureIncompleteClaims)
	assert.False(t, rej.Transient())
}

func TestTokenValidator_EmailPassedToDirectoryVerbatim(t *testing.T) {
	f := newValidatorFixture(t, TokenValidatorConfig{})
	f.claims.EXPECT().FetchClaims(gomock.Any(), "valid-padded").
		Return(domainauth.Claims{Subject: "kc-5", Email: " Ana@Example.org"}, nil)
	f.directory.EXPECT().ResolveUser(gomock.Any(), " Ana@Example.org").
		Return(domainauth.UserRecord{ID: "42", Email: "ana@example.org"}, nil)

	id, err := f.validator.Validate(context.Background(), "valid-padded")
	require.NoError(t, err)
	assert.Equal(t, "42", id.ID)
}

func TestTokenValidator_TransientFailures(t *testing.T) {
	tests := []struct {
		name     string
		fetchErr error
		dirErr   error
		kind     domainauth.FailureKind
	}{
		{
			name:     "provider unreachable",
			fetchErr: domainauth.NewFailure(domainauth.FailureProviderUnreachable, errors.New("dial tcp: refused"), "userinfo request"),
			kind:     domainauth.FailureProviderUnreachable,
		},
		{
			name:     "untagged fetch error",
			fetchErr: errors.New("unexpected EOF"),
			kind:     domainauth.FailureProviderUnreachable,
		},
		{
			name:   "directory outage",
			dirErr: errors.New("connection refused"),
			kind:   domainauth.FailureDirectoryUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newValidatorFixture(t, TokenValidatorConfig{})
			call := f.claims.EXPECT().FetchClaims(gomock.Any(), "valid-xyz")
			if tt.fetchErr != nil {
				call.Return(domainauth.Claims{}, tt.fetchErr)
			} else {
				call.Return(domainauth.Claims{Subject: "kc", Email: "ana@example.org"}, nil)
				f.directory.EXPECT().ResolveUser(gomock.Any(), "ana@example.org").
					Return(domainauth.UserRecord{}, tt.dirErr)
			}

			_, err := f.validator.Validate(context.Background(), "valid-xyz")
			rej := requireRejection(t, err, tt.kind)
			assert.True(t, rej.Transient())
			assert.Equal(t, []string{"transient"}, f.sink.results())
		})
	}
}

func TestTokenValidator_MalformedResponseIsTerminal(t *testing.T) {
	f := newValidatorFixture(t, TokenValidatorConfig{})
	f.claims.EXPECT().FetchClaims(gomock.Any(), "valid-html").
		Return(domainauth.Claims{}, domainauth.NewFailure(domainauth.FailureMalformedResponse, nil, "decode userinfo"))

	_, err := f.validator.Validate(context.Background(), "valid-html")
	rej := requireRejection(t, err, domainauth.FailureMalformedResponse)
	assert.False(t, rej.Transient())
}

func TestTokenValidator_StepTimeoutsAreTransport(t *testing.T) {
	t.Run("claims", func(t *testing.T) {
		f := newValidatorFixture(t, TokenValidatorConfig{ClaimsTimeout: 20 * time.Millisecond})
		f.claims.EXPECT().FetchClaims(gomock.Any(), "valid-slow").
			DoAndReturn(func(ctx context.Context, _ string) (domainauth.Claims, error) {
				<-ctx.Done()
				return domainauth.Claims{}, ctx.Err()
			})

		_, err := f.validator.Validate(context.Background(), "valid-slow")
		requireRejection(t, err, domainauth.FailureProviderUnreachable)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("directory", func(t *testing.T) {
		f := newValidatorFixture(t, TokenValidatorConfig{DirectoryTimeout: 20 * time.Millisecond})
		f.claims.EXPECT().FetchClaims(gomock.Any(), "valid-xyz").
			Return(domainauth.Claims{Subject: "kc", Email: "ana@example.org"}, nil)
		f.directory.EXPECT().ResolveUser(gomock.Any(), "ana@example.org").
			DoAndReturn(func(ctx context.Context, _ string) (domainauth.UserRecord, error) {
				<-ctx.Done()
				return domainauth.UserRecord{}, ctx.Err()
			})

		_, err := f.validator.Validate(context.Background(), "valid-xyz")
		requireRejection(t, err, domainauth.FailureDirectoryUnavailable)
	})
}

func TestTokenValidator_CallerCancellation(t *testing.T) {
	f := newValidatorFixture(t, TokenValidatorConfig{})
	release := make(chan struct{})
	defer close(release)
	f.claims.EXPECT().FetchClaims(gomock.Any(), "valid-xyz").
		DoAndReturn(func(context.Context, string) (domainauth.Claims, error) {
			<-release
			return domainauth.Claims{}, domainauth.NewFailure(domainauth.FailureInvalidToken, nil, "late")
		}).AnyTimes()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := f.validator.Validate(ctx, "valid-xyz")
	rej := requireRejection(t, err, domainauth.FailureProviderUnreachable)
	assert.True(t, rej.Transient())
}

func TestTokenValidator_Idempotent(t *testing.T) {
	f := newValidatorFixture(t, TokenValidatorConfig{})
	f.claims.EXPECT().FetchClaims(gomock.Any(), "valid-xyz2").
		Return(domainauth.Claims{Subject: "kc-2", Email: "ANA@Example.ORG"}, nil).Times(2)
	f.directory.EXPECT().ResolveUser(gomock.Any(), "ANA@Example.ORG").
		Return(domainauth.UserRecord{ID: "42", Email: "ana@example.org", Roles: []domainauth.Role{"operator"}}, nil).Times(2)

	first, err := f.validator.Validate(context.Background(), "valid-xyz2")
	require.NoError(t, err)
	second, err := f.validator.Validate(context.Background(), "valid-xyz2")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestTokenValidator_ConcurrentSameToken(t *testing.T) {
	const callers = 8
	f := newValidatorFixture(t, TokenValidatorConfig{})
	f.claims.EXPECT().FetchClaims(gomock.Any(), "valid-xyz2").
		DoAndReturn(func(context.Context, string) (domainauth.Claims, error) {
			time.Sleep(10 * time.Millisecond)
			return domainauth.Claims{Subject: "kc-2", Email: "ana@example.org"}, nil
		}).MinTimes(1).MaxTimes(callers)
	f.directory.EXPECT().ResolveUser(gomock.Any(), "ana@example.org").
		Return(domainauth.UserRecord{ID: "42", Email: "ana@example.org", Roles: []domainauth.Role{"operator"}}, nil).
		MinTimes(1).MaxTimes(callers)

	results := make([]domainauth.Identity, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := f.validator.Validate(context.Background(), "valid-xyz2")
			assert.NoError(t, err)
			results[i] = id
		}()
	}
	wg.Wait()

	results[0].Roles[0] = "mutated"
	for i := 1; i < callers; i++ {
		assert.Equal(t, []domainauth.Role{"operator"}, results[i].Roles)
	}
}

func TestTokenKey(t *testing.T) {
	assert.Len(t, tokenKey("abc"), 64)
	assert.NotContains(t, tokenKey("valid-xyz"), "valid")
	assert.NotEqual(t, tokenKey("a"), tokenKey("b"))
}
