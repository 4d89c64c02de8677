package localstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/net/publicsuffix"
)

// CookieJar is an http.CookieJar scoped by the public suffix list whose cookies
// for the identity provider origins survive restarts. Reset drops every cookie.
type CookieJar struct {
	path    string
	origins []*url.URL

	mu  sync.RWMutex
	jar *cookiejar.Jar
}

var _ http.CookieJar = (*CookieJar)(nil)

type storedCookie struct {
	Origin string `json:"origin"`
	Name   string `json:"name"`
	Value  string `json:"value"`
}

// NewCookieJar creates a jar persisted to dir/cookies.json for the given origins.
func NewCookieJar(dir string, origins ...string) (*CookieJar, error) {
	if dir == "" {
		return nil, errors.New("credentials directory is required")
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("create credentials dir: %w", err)
	}

	j := &CookieJar{path: filepath.Join(dir, cookiesFile)}
	for _, o := range origins {
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("invalid cookie origin %q", o)
		}
		j.origins = append(j.origins, u)
	}

	jar, err := newPublicSuffixJar()
	if err != nil {
		return nil, err
	}
	j.jar = jar
	if err := j.load(); err != nil {
		return nil, err
	}
	return j, nil
}

func newPublicSuffixJar() (*cookiejar.Jar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	return jar, nil
}

// SetCookies implements http.CookieJar.
func (j *CookieJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	j.jar.SetCookies(u, cookies)
}

// Cookies implements http.CookieJar.
func (j *CookieJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.jar.Cookies(u)
}

// Save writes the cookies currently visible to each origin.
func (j *CookieJar) Save() error {
	j.mu.RLock()
	var stored []storedCookie
	for _, origin := range j.origins {
		for _, c := range j.jar.Cookies(origin) {
			stored = append(stored, storedCookie{Origin: origin.String(), Name: c.Name, Value: c.Value})
		}
	}
	j.mu.RUnlock()

	if len(stored) == 0 {
		return removeIfExists(j.path)
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encode cookies: %w", err)
	}
	return writeFileAtomic(j.path, data)
}

// Reset expires every cookie and removes the persisted copy.
func (j *CookieJar) Reset() error {
	jar, err := newPublicSuffixJar()
	if err != nil {
		return err
	}
	j.mu.Lock()
	j.jar = jar
	j.mu.Unlock()
	return removeIfExists(j.path)
}

func (j *CookieJar) load() error {
	data, err := os.ReadFile(j.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read cookies: %w", err)
	}

	var stored []storedCookie
	if err := json.Unmarshal(data, &stored); err != nil {
		// Unreadable file: start from an empty jar.
		return removeIfExists(j.path)
	}
	for _, sc := range stored {
		u, err := url.Parse(sc.Origin)
		if err != nil {
			continue
		}
		j.jar.SetCookies(u, []*http.Cookie{{Name: sc.Name, Value: sc.Value, Path: "/"}})
	}
	return nil
}
