package snmp

// SNMPv2-MIB system group.
const (
	OIDSysDescr    = "1.3.6.1.2.1.1.1.0"
	OIDSysUpTime   = "1.3.6.1.2.1.1.3.0"
	OIDSysContact  = "1.3.6.1.2.1.1.4.0"
	OIDSysName     = "1.3.6.1.2.1.1.5.0"
	OIDSysLocation = "1.3.6.1.2.1.1.6.0"
)

// IF-MIB ifTable columns.
const (
	OIDIfDescr       = "1.3.6.1.2.1.2.2.1.2"
	OIDIfSpeed       = "1.3.6.1.2.1.2.2.1.5"
	OIDIfPhysAddress = "1.3.6.1.2.1.2.2.1.6"
	OIDIfOperStatus  = "1.3.6.1.2.1.2.2.1.8"
	OIDIfInOctets    = "1.3.6.1.2.1.2.2.1.10"
	OIDIfInErrors    = "1.3.6.1.2.1.2.2.1.14"
	OIDIfOutOctets   = "1.3.6.1.2.1.2.2.1.16"
)

// Tables keyed by addresses encoded in the OID tail.
const (
	// ipNetToMediaPhysAddress: <base>.<ifIndex>.<a>.<b>.<c>.<d>
	OIDIPNetToMediaPhysAddress = "1.3.6.1.2.1.4.22.1.2"
	// dot1dTpFdbPort: <base>.<m1>...<m6>
	OIDDot1dTpFdbPort = "1.3.6.1.2.1.17.4.3.1.2"
	// ipRouteNextHop: <base>.<a>.<b>.<c>.<d>
	OIDIPRouteNextHop = "1.3.6.1.2.1.4.21.1.7"
)

// Vendor supplementary OIDs.
const (
	OIDMikroTikRouterOSVersion = "1.3.6.1.4.1.14988.1.1.4.4.0"
	OIDMikroTikBoardName       = "1.3.6.1.4.1.14988.1.1.7.8.0"
	OIDCiscoModel              = "1.3.6.1.2.1.47.1.1.1.1.13.1" // entPhysicalModelName.1
)
