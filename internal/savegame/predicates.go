package savegame

import "strings"

// Path predicates. Each one looks at the whole ancestor chain, is re-evaluated
// on every event, and is false when the path is too short for the ancestor
// it inspects.

const clusterGatePrefix = "connection_clustergate"

var lootClasses = map[string]bool{
	"collectablewares":      true,
	"collectableblueprints": true,
	"signalleak":            true,
}

func isComponent(p Path) bool {
	return p.back(1).is("component")
}

func isSector(p Path) bool {
	return isComponent(p) && p.back(1).Attr("class") == "sector"
}

func isStation(p Path) bool {
	return isComponent(p) && p.back(1).Attr("class") == "station"
}

func isAbandonedShip(p Path) bool {
	if !isComponent(p) {
		return false
	}
	e := p.back(1)
	return strings.HasPrefix(e.Attr("class"), "ship_") && e.Attr("owner") == "ownerless"
}

func isSectorGate(p Path) bool {
	parent := p.back(2)
	return isComponent(p) &&
		parent.is("connection") &&
		strings.HasPrefix(parent.Attr("connection"), clusterGatePrefix)
}

func isSuperHighwayGate(p Path) bool {
	if !isComponent(p) {
		return false
	}
	e := p.back(1)
	class := e.Attr("class")
	return (class == "highwayentrygate" || class == "highwayexitgate") &&
		strings.Contains(e.Attr("macro"), "superhighway")
}

func isVault(p Path) bool {
	if !isComponent(p) {
		return false
	}
	e := p.back(1)
	return e.Attr("class") == "datavault" || strings.Contains(e.Attr("macro"), "erlking_vault")
}

// isVaultLoot matches a collectable three levels below a vault:
// vault/connections/connection/loot.
func isVaultLoot(p Path) bool {
	return len(p) >= 4 &&
		isComponent(p) &&
		lootClasses[p.back(1).Attr("class")] &&
		isVault(p.trim(3))
}

// isGateConnected matches gate/connections/connection/connected, the link
// from a gate's own connection to the remote gate's connection.
func isGateConnected(p Path, highways bool) bool {
	if !p.back(1).is("connected") {
		return false
	}
	gate := p.trim(3)
	if highways && isSuperHighwayGate(gate) {
		return true
	}
	connection := p.back(2).Attr("connection")
	return (connection == "destination" || strings.HasPrefix(connection, "clustergate")) &&
		isSectorGate(gate)
}

func isHighwayEntry(p Path) bool {
	return p.back(1).is("connection") && p.back(1).Attr("connection") == "entrygate"
}

func isHighwayExit(p Path) bool {
	return p.back(1).is("connection") && p.back(1).Attr("connection") == "exitgate"
}

func isHighway(p Path) bool {
	return isComponent(p) && p.back(1).Attr("class") == "highway"
}

// isGateActivity matches the <object active=".."/> child of a gate.
func isGateActivity(p Path, highways bool) bool {
	if !p.back(1).is("object") {
		return false
	}
	gate := p.trim(1)
	return isSectorGate(gate) || (highways && isSuperHighwayGate(gate))
}

// isComponentPosition matches component/offset/position.
func isComponentPosition(p Path) bool {
	return p.endsWith("component", "offset", "position")
}
