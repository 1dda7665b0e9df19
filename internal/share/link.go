// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package share

import (
	"net/url"
	"strings"
)

// FragmentKey is the URL fragment parameter carrying a share token.
const FragmentKey = "share"

// Link builds "<base>#share=<token>". Any existing fragment of base is
// replaced.
func Link(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String() + "#" + FragmentKey + "=" + token, nil
}

// TokenFromFragment extracts the token from a "share=<token>" fragment.
func TokenFromFragment(fragment string) (string, bool) {
	fragment = strings.TrimPrefix(fragment, "#")
	token, ok := strings.CutPrefix(fragment, FragmentKey+"=")
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

// TokenFromLink extracts the token from a full share link or returns raw
// unchanged when it is already a bare token.
func TokenFromLink(raw string) string {
	raw = strings.TrimSpace(raw)
	if i := strings.Index(raw, "#"); i >= 0 {
		if token, ok := TokenFromFragment(raw[i+1:]); ok {
			return token
		}
	}
	return raw
}
