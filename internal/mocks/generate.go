// Package mocks provides gomock implementations of the identity ports for tests.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	fetcher := mocks.NewMockClaimsFetcher(ctrl)
//	fetcher.EXPECT().FetchClaims(gomock.Any(), "tok").Return(claims, nil)
package mocks

// Generate mock for ClaimsFetcher interface from internal/ports package.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=claims_fetcher_mock.go github.com/target/opsconsole/internal/ports ClaimsFetcher

// Generate mock for DirectoryResolver interface from internal/ports package.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=directory_resolver_mock.go github.com/target/opsconsole/internal/ports DirectoryResolver
