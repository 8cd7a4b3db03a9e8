// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package config

import (
	"testing"

	"github.com/coreledger-node/node/chaincfg"
)

func TestParseArgsDefaultsToMainNet(t *testing.T) {
	cfg, err := ParseArgs([]string{"--logdir", t.TempDir()})
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	if cfg.ChainParams() != &chaincfg.MainNetParams {
		t.Fatalf("expected mainnet params by default")
	}
	if cfg.StrictnessValue() != StrictnessNormal {
		t.Fatalf("expected normal strictness by default, got %s", cfg.StrictnessValue())
	}
}

func TestParseArgsSelectsRegTest(t *testing.T) {
	cfg, err := ParseArgs([]string{"--regtest", "--logdir", t.TempDir()})
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	if cfg.ChainParams() != &chaincfg.RegressionNetParams {
		t.Fatalf("expected regtest params when --regtest is passed")
	}
}

func TestParseArgsRejectsBothTestNetAndRegTest(t *testing.T) {
	_, err := ParseArgs([]string{"--testnet", "--regtest", "--logdir", t.TempDir()})
	if err == nil {
		t.Fatalf("expected an error when both --testnet and --regtest are set")
	}
}

func TestParseArgsValidatesStrictness(t *testing.T) {
	_, err := ParseArgs([]string{"--strictness", "bogus", "--logdir", t.TempDir()})
	if err == nil {
		t.Fatalf("expected an error for an unrecognised strictness value")
	}
}

func TestParseArgsAcceptsEachStrictnessValue(t *testing.T) {
	for _, level := range []string{"normal", "relaxed", "paranoid"} {
		cfg, err := ParseArgs([]string{"--strictness", level, "--logdir", t.TempDir()})
		if err != nil {
			t.Fatalf("ParseArgs(%q): %v", level, err)
		}
		if cfg.StrictnessValue().String() != level {
			t.Fatalf("StrictnessValue() = %s, want %s", cfg.StrictnessValue(), level)
		}
	}
}

func TestParseArgsCollectsPeerLists(t *testing.T) {
	cfg, err := ParseArgs([]string{
		"--addpeer", "10.0.0.1:8333",
		"--addpeer", "10.0.0.2:8333",
		"--connect", "10.0.0.3:8333",
		"--logdir", t.TempDir(),
	})
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	if len(cfg.AddPeers) != 2 {
		t.Fatalf("AddPeers = %v, want 2 entries", cfg.AddPeers)
	}
	if len(cfg.ConnectPeers) != 1 || cfg.ConnectPeers[0] != "10.0.0.3:8333" {
		t.Fatalf("ConnectPeers = %v, want [10.0.0.3:8333]", cfg.ConnectPeers)
	}
}
