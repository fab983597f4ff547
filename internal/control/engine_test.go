package control

import (
	"testing"

	"github.com/tranvu/ledgersync/internal/core/config"
	"github.com/tranvu/ledgersync/internal/core/domain"
	"github.com/tranvu/ledgersync/internal/indexing/indexer"
)

func sourceByKey(t *testing.T, sources []indexer.Source, key string) indexer.Source {
	t.Helper()
	for _, s := range sources {
		if s.Key == key {
			return s
		}
	}
	t.Fatalf("no source with key %s", key)
	return indexer.Source{}
}

func TestBuildSources(t *testing.T) {
	sources := buildSources(config.SourcesConfig{
		Exchanges: []config.ExchangeSourceConfig{
			{Address: "0xExchange", StartBlock: 100},
		},
		Tokens: []config.TokenSourceConfig{
			{Address: "0xToken", StartBlock: 50},
			{Address: "0xLegacy", Legacy: true},
		},
		Approvals: []config.ApprovalSourceConfig{
			{Token: "0xToken", Exchange: "0xEscrow", StartBlock: 60},
			{Token: "0xToken"},
		},
	})

	// One exchange expands to two sources, plus two tokens and two approval
	// pairs.
	if len(sources) != 6 {
		t.Fatalf("got %d sources, want 6", len(sources))
	}

	orders := sourceByKey(t, sources, domain.OrderSourceKey("0xExchange"))
	if orders.StartBlock != 100 || orders.Contract.Address != "0xExchange" {
		t.Errorf("unexpected order source: %+v", orders)
	}
	if len(orders.Kinds) != 2 {
		t.Errorf("order source kinds = %v", orders.Kinds)
	}

	agreements := sourceByKey(t, sources, domain.AgreementSourceKey("0xExchange"))
	if len(agreements.Kinds) != 3 {
		t.Errorf("agreement source kinds = %v", agreements.Kinds)
	}

	// The legacy token template must not expose approval events.
	legacy := sourceByKey(t, sources, domain.TransferSourceKey("0xLegacy"))
	if _, ok := legacy.Contract.ABI.Events["ApplyForTransfer"]; ok {
		t.Error("legacy token contract should not define ApplyForTransfer")
	}
	if _, ok := legacy.Contract.ABI.Events["Transfer"]; !ok {
		t.Error("legacy token contract should define Transfer")
	}

	// Escrow-routed approvals scan the escrow contract; direct ones scan the
	// token itself.
	escrowed := sourceByKey(t, sources, domain.ApprovalSourceKey("0xToken", "0xEscrow"))
	if escrowed.Contract.Address != "0xEscrow" || escrowed.StartBlock != 60 {
		t.Errorf("unexpected escrowed approval source: %+v", escrowed)
	}
	direct := sourceByKey(t, sources, domain.ApprovalSourceKey("0xToken", ""))
	if direct.Contract.Address != "0xToken" {
		t.Errorf("unexpected direct approval source: %+v", direct)
	}
	if len(direct.Kinds) != 4 {
		t.Errorf("approval source kinds = %v", direct.Kinds)
	}
}
