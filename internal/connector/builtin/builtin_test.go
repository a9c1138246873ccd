package builtin

import (
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/HerbHall/netvault/internal/connector"
	"github.com/HerbHall/netvault/internal/workpool"
	"github.com/HerbHall/netvault/pkg/models"
)

func TestNewRegistry_RegistersAllKinds(t *testing.T) {
	pool := workpool.New(1, zap.NewNop())
	defer pool.Close()

	r, err := NewRegistry(pool)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	kinds := r.Kinds()
	want := []models.ConnectorKind{models.ConnectorREST, models.ConnectorSNMP, models.ConnectorSSH}
	if len(kinds) != len(want) {
		t.Fatalf("Kinds() = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("Kinds()[%d] = %q, want %q", i, kinds[i], want[i])
		}
	}

	for _, typ := range []string{"snmp", "ssh", "rest_api", "rest"} {
		if _, err := r.New(typ, connector.Target{Name: "d", Host: "192.0.2.10"}, zap.NewNop()); err != nil {
			t.Errorf("New(%q): %v", typ, err)
		}
	}
}

func TestRegister_Twice(t *testing.T) {
	pool := workpool.New(1, zap.NewNop())
	defer pool.Close()

	r := connector.NewRegistry()
	if err := Register(r, pool); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := Register(r, pool); !errors.Is(err, connector.ErrDuplicateKind) {
		t.Errorf("second Register error = %v, want ErrDuplicateKind", err)
	}
}
