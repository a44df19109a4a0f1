package app

import (
	"testing"

	"github.com/avelinor/wagerbot/internal/config"
	"github.com/avelinor/wagerbot/internal/store/memory"
)

func TestBuildRegistryWiresKinds(t *testing.T) {
	balances := memory.NewBalanceStore()
	reg, err := buildRegistry([]config.EconomyConfig{
		{ID: "house", DisplayName: "House Points", Kind: "local", Debitable: true, Creditable: true, Local: true},
		{ID: "arcade", DisplayName: "Arcade Tokens", Kind: "points_api", Debitable: true, Creditable: true, BaseURL: "http://arcade.test"},
	}, balances)
	if err != nil {
		t.Fatalf("buildRegistry: %v", err)
	}

	if got := len(reg.List()); got != 2 {
		t.Fatalf("economies = %d, want 2", got)
	}
	local, ok := reg.Local()
	if !ok || local.ID != "house" {
		t.Fatalf("local economy = %+v, ok = %v", local, ok)
	}
	for _, id := range []string{"house", "arcade"} {
		if _, err := reg.Ledger(id); err != nil {
			t.Fatalf("ledger %s: %v", id, err)
		}
	}
}

func TestBuildRegistryRejectsUnknownKind(t *testing.T) {
	_, err := buildRegistry([]config.EconomyConfig{
		{ID: "weird", Kind: "carrier_pigeon"},
	}, memory.NewBalanceStore())
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
