package board

import (
	"net/http"
	"net/url"
)

// JarCookies exposes the client cookie jar as the page's cookie view.
type JarCookies struct {
	jar  http.CookieJar
	base *url.URL
}

// Cookie returns the value of the named cookie visible at the server root.
func (c *JarCookies) Cookie(name string) (string, bool) {
	for _, ck := range c.jar.Cookies(c.base) {
		if ck.Name == name {
			return ck.Value, true
		}
	}
	return "", false
}

// Set stores a cookie scoped to the server root.
func (c *JarCookies) Set(name, value string) {
	c.jar.SetCookies(c.base, []*http.Cookie{{Name: name, Value: value, Path: "/"}})
}

// Expire removes the named cookie from the jar.
func (c *JarCookies) Expire(name string) {
	c.jar.SetCookies(c.base, []*http.Cookie{{Name: name, Path: "/", MaxAge: -1}})
}

// All returns the name and value of every cookie visible at the server root.
func (c *JarCookies) All() map[string]string {
	out := make(map[string]string)
	for _, ck := range c.jar.Cookies(c.base) {
		out[ck.Name] = ck.Value
	}
	return out
}
