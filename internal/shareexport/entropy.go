// Copyright 2026 The Vifei Authors
// This file is part of Vifei.
//
// Vifei is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Vifei is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Vifei. If not, see <http://www.gnu.org/licenses/>.

package shareexport

import (
	"math"
	"regexp"
)

// base64ish matches contiguous base64-alphabet runs of at least 20
// characters - the shortest span where Shannon entropy becomes a
// meaningful signal rather than noise.
var base64ish = regexp.MustCompile(`[A-Za-z0-9+/_=-]{20,}`)

// shannonEntropy returns the Shannon entropy, in bits per character, of s.
func shannonEntropy(s string) float64 {
	if s == "" {
		return 0
	}
	var counts [256]int
	for i := 0; i < len(s); i++ {
		counts[s[i]]++
	}
	n := float64(len(s))
	var entropy float64
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / n
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// entropyFindings scans text for base64-like runs whose entropy meets or
// exceeds threshold, returning the offending substrings.
func entropyFindings(text string, threshold float64) []string {
	var hits []string
	for _, m := range base64ish.FindAllString(text, -1) {
		if shannonEntropy(m) >= threshold {
			hits = append(hits, m)
		}
	}
	return hits
}
