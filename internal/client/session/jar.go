package session

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"

	"golang.org/x/net/publicsuffix"
)

// Jar is a cookie jar that can be emptied. The refresh cookie lives here;
// the pipeline never reads it.
type Jar struct {
	mu  sync.RWMutex
	jar *cookiejar.Jar
}

func NewJar() (*Jar, error) {
	jar, err := newCookieJar()
	if err != nil {
		return nil, err
	}
	return &Jar{jar: jar}, nil
}

func newCookieJar() (*cookiejar.Jar, error) {
	return cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
}

func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	j.jar.SetCookies(u, cookies)
}

func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.jar.Cookies(u)
}

// Reset drops every cookie.
func (j *Jar) Reset() {
	jar, err := newCookieJar()
	if err != nil {
		// cookiejar.New only fails on invalid options.
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.jar = jar
}
