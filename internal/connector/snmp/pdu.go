package snmp

import (
	"fmt"
	"strings"

	"github.com/gosnmp/gosnmp"
)

// pduString renders a PDU value as text.
func pduString(pdu gosnmp.SnmpPDU) string {
	switch v := pdu.Value.(type) {
	case nil:
		return ""
	case []byte:
		return string(v)
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

// pduInt extracts an integer value.
func pduInt(pdu gosnmp.SnmpPDU) int {
	switch v := pdu.Value.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case uint:
		return int(v) //nolint:gosec // SNMP integers fit in int
	case uint32:
		return int(v)
	case uint64:
		return int(v) //nolint:gosec // SNMP integers fit in int
	default:
		return 0
	}
}

// pduUint64 extracts a gauge or counter value.
func pduUint64(pdu gosnmp.SnmpPDU) uint64 {
	switch v := pdu.Value.(type) {
	case uint64:
		return v
	case uint32:
		return uint64(v)
	case uint:
		return uint64(v)
	case int:
		if v >= 0 {
			return uint64(v)
		}
	}
	return 0
}

// missing reports whether the agent answered without a value.
func missing(pdu gosnmp.SnmpPDU) bool {
	switch pdu.Type {
	case gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.EndOfMibView, gosnmp.Null:
		return true
	}
	return false
}

// oidTail returns the sub-identifiers of oid that follow base, or nil when
// oid is not below base. Leading dots are ignored on both sides.
func oidTail(oid, base string) []string {
	oid = strings.TrimPrefix(oid, ".")
	base = strings.TrimPrefix(base, ".")
	if !strings.HasPrefix(oid, base+".") {
		return nil
	}
	return strings.Split(oid[len(base)+1:], ".")
}
