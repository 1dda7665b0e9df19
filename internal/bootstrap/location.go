// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package bootstrap

import (
	"net/url"

	"github.com/dimibg-lab/Elevatorapp-ai/internal/share"
)

// Location is where the application was opened from. It may carry a share
// token that has to be consumed exactly once.
type Location interface {
	ShareToken() (string, bool)
	StripShareToken() error
}

// URLLocation is a Location over a URL whose fragment may be "share=<token>".
type URLLocation struct {
	URL *url.URL
}

// ParseLocation parses a share link or any other URL. A bare token is
// accepted as well.
func ParseLocation(raw string) (*URLLocation, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" && u.Fragment == "" && u.Path != "" {
		// bare token
		return &URLLocation{URL: &url.URL{Fragment: share.FragmentKey + "=" + raw}}, nil
	}
	return &URLLocation{URL: u}, nil
}

// ShareToken returns the token carried in the fragment.
func (l *URLLocation) ShareToken() (string, bool) {
	if l == nil || l.URL == nil {
		return "", false
	}
	return share.TokenFromFragment(l.URL.Fragment)
}

// StripShareToken clears the fragment so the token is not consumed again.
func (l *URLLocation) StripShareToken() error {
	if l == nil || l.URL == nil {
		return nil
	}
	l.URL.Fragment = ""
	l.URL.RawFragment = ""
	return nil
}

// String returns the current URL.
func (l *URLLocation) String() string {
	if l == nil || l.URL == nil {
		return ""
	}
	return l.URL.String()
}

// NoLocation carries no share token.
type NoLocation struct{}

func (NoLocation) ShareToken() (string, bool) { return "", false }

func (NoLocation) StripShareToken() error { return nil }
