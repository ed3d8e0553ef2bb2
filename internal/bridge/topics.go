package bridge

import "fmt"

// Topic builders for the site namespace. The broker-side layout is
// site/{site}/{kind}/{id}/{channel}, with a separate customize/* namespace
// for dashboard profile updates.

// NodeTelemetryTopic returns the telemetry topic for a single node.
func NodeTelemetryTopic(site, node string) string {
	return fmt.Sprintf("site/%s/node/%s/telemetry", site, node)
}

// NodeStatusTopic returns the online/offline status topic for a single node.
func NodeStatusTopic(site, node string) string {
	return fmt.Sprintf("site/%s/node/%s/status", site, node)
}

// NodeCommandTopic returns the command topic for a single node.
func NodeCommandTopic(site, node string) string {
	return fmt.Sprintf("site/%s/node/%s/cmd", site, node)
}

// NodePairingTopic returns the pairing request topic for a single node.
func NodePairingTopic(site, node string) string {
	return fmt.Sprintf("site/%s/node/%s/pairing", site, node)
}

// ZoneCommandTopic returns the command topic for a zone.
func ZoneCommandTopic(site, zone string) string {
	return fmt.Sprintf("site/%s/zone/%s/cmd", site, zone)
}

// ZonePresenceTopic returns the presence topic for a zone.
func ZonePresenceTopic(site, zone string) string {
	return fmt.Sprintf("site/%s/zone/%s/presence", site, zone)
}

// CoordMmwaveTopic returns the mmWave frame topic for a coordinator.
func CoordMmwaveTopic(site, coord string) string {
	return fmt.Sprintf("site/%s/coord/%s/mmwave", site, coord)
}

// CoordTelemetryTopic returns the telemetry topic for a single coordinator.
func CoordTelemetryTopic(site, coord string) string {
	return fmt.Sprintf("site/%s/coord/%s/telemetry", site, coord)
}

// CoordStatusTopic returns the status topic for a single coordinator.
func CoordStatusTopic(site, coord string) string {
	return fmt.Sprintf("site/%s/coord/%s/status", site, coord)
}

// AllNodeTelemetry returns a pattern matching telemetry from every node on
// the site.
func AllNodeTelemetry(site string) string {
	return fmt.Sprintf("site/%s/node/+/telemetry", site)
}

// AllNodeStatus returns a pattern matching status from every node on the site.
func AllNodeStatus(site string) string {
	return fmt.Sprintf("site/%s/node/+/status", site)
}

// AllCoordTelemetry returns a pattern matching telemetry from every
// coordinator on the site.
func AllCoordTelemetry(site string) string {
	return fmt.Sprintf("site/%s/coord/+/telemetry", site)
}

// AllCoordStatus returns a pattern matching status from every coordinator
// on the site.
func AllCoordStatus(site string) string {
	return fmt.Sprintf("site/%s/coord/+/status", site)
}

// AllNodePairing returns a pattern matching pairing requests from every
// node on the site.
func AllNodePairing(site string) string {
	return fmt.Sprintf("site/%s/node/+/pairing", site)
}

// AllZonePresence returns a pattern matching presence from every zone on
// the site.
func AllZonePresence(site string) string {
	return fmt.Sprintf("site/%s/zone/+/presence", site)
}

// AllCoordMmwave returns a pattern matching mmWave frames from every
// coordinator on the site.
func AllCoordMmwave(site string) string {
	return fmt.Sprintf("site/%s/coord/+/mmwave", site)
}

// SiteWildcard returns a pattern matching every topic under the site.
func SiteWildcard(site string) string {
	return fmt.Sprintf("site/%s/#", site)
}

// CustomizeTopic returns the topic carrying live updates for a dashboard
// customization section, e.g. "profiles" or "layout".
func CustomizeTopic(section string) string {
	return fmt.Sprintf("customize/%s", section)
}
