package main

import (
	"testing"

	"github.com/sumtype/deadval/internal/label"
)

func TestResolveTargetSplitsOnLastDot(t *testing.T) {
	id, err := resolveTarget("Mod.Sub.name")
	if err != nil {
		t.Fatalf("resolveTarget: %v", err)
	}
	want := label.Synthesize("Mod.Sub", "name")
	if id != want {
		t.Errorf("resolveTarget(%q) = %v, want %v", "Mod.Sub.name", id, want)
	}
}

func TestResolveTargetRejectsMissingDot(t *testing.T) {
	if _, err := resolveTarget("noModule"); err == nil {
		t.Error("resolveTarget accepted a target with no module qualifier")
	}
}
