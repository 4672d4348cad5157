// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SAVIKA Contributors

package memory

import (
	"context"
	"io"
	"os"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/savika/savika/internal/credential"
)

// SeedAccount is a pre-confirmed account loaded at startup.
type SeedAccount struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	FullName string `yaml:"full_name"`
}

type seedFile struct {
	Accounts []SeedAccount `yaml:"accounts"`
}

// ReadSeed decodes a YAML document of the form
//
//	accounts:
//	  - email: ana@example.com
//	    password: Abcd123!
//	    full_name: Ana Lopez
func ReadSeed(r io.Reader) ([]SeedAccount, error) {
	var doc seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, oops.Code("SEED_DECODE_FAILED").Wrap(err)
	}
	return doc.Accounts, nil
}

// LoadSeedFile reads seed accounts from path.
func LoadSeedFile(path string) ([]SeedAccount, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from operator configuration
	if err != nil {
		return nil, oops.Code("SEED_OPEN_FAILED").With("path", path).Wrap(err)
	}
	defer func() { _ = f.Close() }()

	return ReadSeed(f)
}

// Seed creates confirmed accounts without establishing a session.
func (g *Gateway) Seed(ctx context.Context, accounts []SeedAccount) error {
	for _, a := range accounts {
		key := credential.NormalizeEmail(a.Email)
		if !credential.ValidateEmail(key) || a.Password == "" {
			return oops.Code("SEED_ACCOUNT_INVALID").With("email", a.Email).Errorf("seed account needs a valid email and a password")
		}
		if _, err := g.create(key, a.Password, a.FullName, true); err != nil {
			return oops.Code("SEED_ACCOUNT_FAILED").With("email", a.Email).Wrap(err)
		}
		if err := ctx.Err(); err != nil {
			return oops.Code("SEED_CANCELLED").Wrap(err)
		}
	}
	return nil
}
