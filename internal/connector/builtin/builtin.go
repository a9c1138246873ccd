// Package builtin registers the connectors shipped with NetVault.
package builtin

import (
	"github.com/HerbHall/netvault/internal/connector"
	"github.com/HerbHall/netvault/internal/connector/rest"
	"github.com/HerbHall/netvault/internal/connector/snmp"
	"github.com/HerbHall/netvault/internal/connector/ssh"
	"github.com/HerbHall/netvault/internal/workpool"
	"github.com/HerbHall/netvault/pkg/models"
)

// Register adds the snmp, ssh and rest_api connectors to r. SSH commands
// run on pool.
func Register(r *connector.Registry, pool *workpool.Pool) error {
	for kind, factory := range map[models.ConnectorKind]connector.Factory{
		models.ConnectorSNMP: snmp.New,
		models.ConnectorSSH:  ssh.NewFactory(pool),
		models.ConnectorREST: rest.New,
	} {
		if err := r.Register(kind, factory); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry with the built-in connectors.
func NewRegistry(pool *workpool.Pool) (*connector.Registry, error) {
	r := connector.NewRegistry()
	if err := Register(r, pool); err != nil {
		return nil, err
	}
	return r, nil
}
