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

// Package shareexport implements the export-safety boundary: a secret
// scanner that refuses to bundle a run until every flagged item is
// resolved, and a deterministic bundler for runs that pass.
package shareexport

import (
	"fmt"
	"os"
	"regexp"

	"github.com/pelletier/go-toml/v2"
)

// Rule is one regex-based pattern in the scanner's rule pack.
type Rule struct {
	Name    string `toml:"name"`
	Pattern string `toml:"pattern"`

	compiled *regexp.Regexp
}

// RulePack is a named, TOML-loadable set of rules plus the entropy
// threshold applied to base64-like literals the named rules miss.
type RulePack struct {
	EntropyThreshold float64 `toml:"entropy_threshold"`
	Rules            []Rule  `toml:"rules"`
}

// defaultRules mirrors the common secret shapes operators actually leak:
// cloud credentials, VCS tokens, JWTs, bearer headers, API keys, and PEM
// material.
var defaultRules = []Rule{
	{Name: "aws_access_key", Pattern: `AKIA[0-9A-Z]{16}`},
	{Name: "aws_secret_key", Pattern: `(?i)aws(.{0,20})?(secret|access)(.{0,20})?['"][0-9a-zA-Z/+]{40}['"]`},
	{Name: "github_token", Pattern: `gh[pousr]_[0-9A-Za-z]{36,255}`},
	{Name: "generic_bearer", Pattern: `(?i)bearer\s+[0-9A-Za-z\-._~+/]{20,}`},
	{Name: "jwt", Pattern: `eyJ[0-9A-Za-z_-]{10,}\.[0-9A-Za-z_-]{10,}\.[0-9A-Za-z_-]{10,}`},
	{Name: "openai_style_key", Pattern: `sk-[0-9A-Za-z]{20,}`},
	{Name: "pem_block", Pattern: `-----BEGIN [A-Z ]*PRIVATE KEY-----`},
}

// DefaultRulePack returns the built-in rule pack, entropy threshold 4.5 -
// the conventional cutoff for flagging base64-ish literals as likely
// secrets without drowning in false positives on ordinary identifiers.
func DefaultRulePack() *RulePack {
	rules := make([]Rule, len(defaultRules))
	copy(rules, defaultRules)
	return &RulePack{EntropyThreshold: 4.5, Rules: rules}
}

// LoadRulePack reads a TOML rule pack from path, falling back to
// DefaultRulePack when path is empty or the file does not exist.
func LoadRulePack(path string) (*RulePack, error) {
	if path == "" {
		return compile(DefaultRulePack())
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return compile(DefaultRulePack())
		}
		return nil, fmt.Errorf("shareexport: read rule pack %q: %w", path, err)
	}
	pack := DefaultRulePack()
	pack.Rules = nil
	if err := toml.Unmarshal(b, pack); err != nil {
		return nil, fmt.Errorf("shareexport: parse rule pack %q: %w", path, err)
	}
	if len(pack.Rules) == 0 {
		pack.Rules = defaultRules
	}
	return compile(pack)
}

func compile(pack *RulePack) (*RulePack, error) {
	for i := range pack.Rules {
		re, err := regexp.Compile(pack.Rules[i].Pattern)
		if err != nil {
			return nil, fmt.Errorf("shareexport: rule %q: %w", pack.Rules[i].Name, err)
		}
		pack.Rules[i].compiled = re
	}
	return pack, nil
}
