/*
 * Copyright 2024 caiflower Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package protocol

import (
	"strconv"
	"strings"
)

type SameSite int

const (
	SameSiteUnset SameSite = iota
	SameSiteNone
	SameSiteLax
	SameSiteStrict
)

func (s SameSite) String() string {
	switch s {
	case SameSiteNone:
		return "None"
	case SameSiteLax:
		return "Lax"
	case SameSiteStrict:
		return "Strict"
	default:
		return ""
	}
}

// ParseSameSite is case-sensitive; anything unknown is SameSiteUnset.
func ParseSameSite(s string) SameSite {
	switch s {
	case "None":
		return SameSiteNone
	case "Lax":
		return SameSiteLax
	case "Strict":
		return SameSiteStrict
	default:
		return SameSiteUnset
	}
}

// Cookie is one Cookie/Set-Cookie entry. MaxAge -1 means the attribute is not sent,
// so build cookies with NewCookie rather than a zero literal.
type Cookie struct {
	Name     string
	Value    string
	Secure   bool
	HttpOnly bool
	SameSite SameSite
	Domain   string
	Path     string
	MaxAge   int
}

func NewCookie(name, value string) Cookie {
	return Cookie{Name: name, Value: value, MaxAge: -1}
}

func cleanCookieToken(s string) string {
	return strings.TrimSpace(StripControl(s))
}

// Valid reports whether the cookie can be written: letters/underscore name and a non-empty value.
func (c *Cookie) Valid() bool {
	return ValidName(cleanCookieToken(c.Name)) && cleanCookieToken(c.Value) != ""
}

// RoundTrips reports whether ParseCookieHeader gives back exactly this cookie from its Serialize
// output. Valid cookies named like an attribute, or with whitespace or ';' in a value, do not.
func (c *Cookie) RoundTrips() bool {
	if !c.Valid() {
		return false
	}
	name := cleanCookieToken(c.Name)
	if _, ok := attributeState(name); ok || name == "Secure" || name == "HttpOnly" {
		return false
	}
	for _, s := range []string{c.Value, c.Domain, c.Path} {
		if strings.ContainsAny(cleanCookieToken(s), " \t;") {
			return false
		}
	}
	return true
}

// Serialize renders name=value followed by the attributes that are set. Invalid cookies render as "".
func (c *Cookie) Serialize() string {
	if !c.Valid() {
		return ""
	}

	var b strings.Builder
	b.WriteString(cleanCookieToken(c.Name))
	b.WriteByte('=')
	b.WriteString(cleanCookieToken(c.Value))
	if domain := cleanCookieToken(c.Domain); domain != "" {
		b.WriteString("; Domain=")
		b.WriteString(domain)
	}
	if path := cleanCookieToken(c.Path); path != "" {
		b.WriteString("; Path=")
		b.WriteString(path)
	}
	if c.SameSite != SameSiteUnset {
		b.WriteString("; SameSite=")
		b.WriteString(c.SameSite.String())
	}
	if c.MaxAge > -1 {
		b.WriteString("; Max-Age=")
		b.WriteString(strconv.Itoa(c.MaxAge))
	}
	if c.Secure {
		b.WriteString("; Secure")
	}
	if c.HttpOnly {
		b.WriteString("; HttpOnly")
	}
	return b.String()
}

// SerializeAll joins the valid cookies with "; ".
func SerializeAll(cookies []Cookie) string {
	parts := make([]string, 0, len(cookies))
	for i := range cookies {
		if s := cookies[i].Serialize(); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "; ")
}

type cookieState int

const (
	cookieName cookieState = iota
	cookieValue
	cookieSameSite
	cookieDomain
	cookiePath
	cookieExpires
	cookieMaxAge
)

func attributeState(token string) (cookieState, bool) {
	switch token {
	case "SameSite":
		return cookieSameSite, true
	case "Domain":
		return cookieDomain, true
	case "Path":
		return cookiePath, true
	case "Expires":
		return cookieExpires, true
	case "Max-Age":
		return cookieMaxAge, true
	}
	return cookieName, false
}

type cookieParser struct {
	state   cookieState
	token   []byte
	cookie  Cookie
	cookies []Cookie
}

func (p *cookieParser) push() {
	if p.cookie.Name != "" {
		p.cookies = append(p.cookies, p.cookie)
	}
	p.cookie = NewCookie("", "")
}

func (p *cookieParser) equals() {
	token := cleanCookieToken(string(p.token))
	if token == "" {
		p.token = p.token[:0]
		return
	}

	if state, ok := attributeState(token); ok {
		p.state = state
		p.token = p.token[:0]
		return
	}

	switch p.state {
	case cookieName:
		if p.cookie.Name != "" || p.cookie.Value != "" {
			p.push()
		}
		p.cookie.Name = token
		p.state = cookieValue
		p.token = p.token[:0]
	case cookieValue:
		p.token = append(p.token, '=')
	default:
		p.token = p.token[:0]
	}
}

// finish closes the pending token the way ';' does.
func (p *cookieParser) finish() {
	token := cleanCookieToken(string(p.token))
	switch p.state {
	case cookieValue:
		if token != "" {
			p.cookie.Value = token
		}
	case cookieName:
		switch token {
		case "Secure":
			p.cookie.Secure = true
		case "HttpOnly":
			p.cookie.HttpOnly = true
		}
	case cookieSameSite:
		p.cookie.SameSite = ParseSameSite(token)
	case cookieDomain:
		p.cookie.Domain = token
	case cookiePath:
		p.cookie.Path = token
	case cookieExpires:
		// recognized, not kept
	case cookieMaxAge:
		if v, err := strconv.Atoi(token); err == nil {
			p.cookie.MaxAge = v
		} else {
			p.cookie.MaxAge = -1
		}
	}
	p.state = cookieName
	p.token = p.token[:0]
}

// ParseCookieHeader parses a Cookie or Set-Cookie value. Whitespace between tokens is ignored.
// A new name=value pair after a complete one starts the next cookie; attributes apply to the
// cookie they follow.
func ParseCookieHeader(s string) []Cookie {
	p := &cookieParser{cookie: NewCookie("", "")}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case ' ', '\t', '\r', '\n', '\v', '\f':
		case '=':
			p.equals()
		case ';':
			p.finish()
		default:
			p.token = append(p.token, c)
		}
	}
	p.finish()
	p.push()
	return p.cookies
}
