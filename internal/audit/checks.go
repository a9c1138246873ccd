package audit

import (
	"fmt"
	"sort"
	"strings"

	"github.com/HerbHall/netvault/internal/connector"
	"github.com/HerbHall/netvault/pkg/models"
)

// Check names used in network audit results.
const (
	CheckDuplicateIP  = "Duplicate IP Detection"
	CheckDuplicateMAC = "Duplicate MAC Detection"
	CheckOrphan       = "Orphan Device Detection"
)

// duplicateIPs groups ARP entries from every device by IP and returns the
// IPs answered by more than one distinct MAC, each with its sorted MACs.
func duplicateIPs(data map[int64]models.PollResult) map[string][]string {
	seen := make(map[string]map[string]struct{})
	for _, res := range data {
		for _, e := range res.ArpTable {
			if e.IP == "" || e.MAC == "" {
				continue
			}
			if seen[e.IP] == nil {
				seen[e.IP] = make(map[string]struct{})
			}
			seen[e.IP][connector.NormalizeMAC(e.MAC)] = struct{}{}
		}
	}
	return multiples(seen)
}

// duplicateMACs groups MAC table entries from every device by MAC and
// returns the MACs learned on more than one device:port location.
func duplicateMACs(data map[int64]models.PollResult) map[string][]string {
	seen := make(map[string]map[string]struct{})
	for id, res := range data {
		for _, e := range res.MacTable {
			if e.MAC == "" || e.Port == "" {
				continue
			}
			mac := connector.NormalizeMAC(e.MAC)
			if seen[mac] == nil {
				seen[mac] = make(map[string]struct{})
			}
			seen[mac][fmt.Sprintf("device_%d:%s", id, e.Port)] = struct{}{}
		}
	}
	return multiples(seen)
}

// orphanIPs returns, sorted, the ARP-observed IPs that match no managed
// device's configured IP.
func orphanIPs(data map[int64]models.PollResult, inventory []models.Device) []string {
	known := make(map[string]struct{}, len(inventory))
	for _, d := range inventory {
		if d.IP != "" {
			known[d.IP] = struct{}{}
		}
	}
	orphans := make(map[string]struct{})
	for _, res := range data {
		for _, e := range res.ArpTable {
			if e.IP == "" {
				continue
			}
			if _, ok := known[e.IP]; !ok {
				orphans[e.IP] = struct{}{}
			}
		}
	}
	return sortedKeys(orphans)
}

// vlanConsistency is reserved for cross-device VLAN checks and reports nothing yet.
func vlanConsistency(map[int64]models.PollResult) []models.AuditCheck {
	return nil
}

func multiples(groups map[string]map[string]struct{}) map[string][]string {
	out := make(map[string][]string)
	for key, members := range groups {
		if len(members) > 1 {
			out[key] = sortedKeys(members)
		}
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// networkChecks runs every fleet-wide analysis and returns the findings in a
// stable order together with the per-analysis counts used in the summary.
func networkChecks(data map[int64]models.PollResult, inventory []models.Device) (checks []models.AuditCheck, dupIPs, dupMACs, orphans int) {
	ips := duplicateIPs(data)
	for _, ip := range sortedMapKeys(ips) {
		macs := ips[ip]
		checks = append(checks, models.AuditCheck{
			Name:    CheckDuplicateIP,
			Status:  models.CheckFail,
			Message: fmt.Sprintf("IP %s is associated with multiple MAC addresses: %s", ip, strings.Join(macs, ", ")),
			Details: map[string]any{"ip": ip, "macs": macs},
		})
	}

	macs := duplicateMACs(data)
	for _, mac := range sortedMapKeys(macs) {
		ports := macs[mac]
		checks = append(checks, models.AuditCheck{
			Name:    CheckDuplicateMAC,
			Status:  models.CheckWarning,
			Message: fmt.Sprintf("MAC %s seen on multiple ports/devices: %s", mac, strings.Join(ports, ", ")),
			Details: map[string]any{"mac": mac, "ports": ports},
		})
	}

	orphanList := orphanIPs(data, inventory)
	for _, ip := range orphanList {
		checks = append(checks, models.AuditCheck{
			Name:    CheckOrphan,
			Status:  models.CheckWarning,
			Message: fmt.Sprintf("Device with IP %s found in ARP tables but not in NetVault inventory", ip),
			Details: map[string]any{"ip": ip},
		})
	}

	checks = append(checks, vlanConsistency(data)...)
	return checks, len(ips), len(macs), len(orphanList)
}

func sortedMapKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
