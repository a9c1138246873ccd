package version

import (
	"strings"
	"testing"
)

func TestInfo_ContainsVersion(t *testing.T) {
	old := Version
	Version = "1.2.3"
	defer func() { Version = old }()

	if Short() != "1.2.3" {
		t.Errorf("Short() = %q, want 1.2.3", Short())
	}
	if !strings.Contains(Info(), "netvault 1.2.3") {
		t.Errorf("Info() = %q, want it to contain %q", Info(), "netvault 1.2.3")
	}
}
