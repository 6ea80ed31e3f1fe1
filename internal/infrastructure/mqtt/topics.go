package mqtt

import "fmt"

// Topic prefixes for the VeSync bridge.
//
// All accessory topics use the flat scheme: vesync/{kind}/{category}/{uuid}
// where category is the accessory category (fan, outlet, switch, bulb)
// and uuid is the deterministic accessory identifier.
const (
	// TopicPrefix is the base for all bridge topics.
	TopicPrefix = "vesync"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "vesync/system"

	// TopicPrefixAccessory is the base for accessory lifecycle events.
	TopicPrefixAccessory = "vesync/accessory"
)

// Topics provides builders for bridge MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.AccessoryState("fan", "5f8a...")
//	// Returns: "vesync/state/fan/5f8a..."
type Topics struct{}

// AccessoryState returns the topic for device state updates.
//
// Example: vesync/state/fan/5f8a1c2e-...
func (Topics) AccessoryState(category, uuid string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, category, uuid)
}

// AccessoryCommand returns the topic for commands to a device.
//
// Example: vesync/command/outlet/5f8a1c2e-...
func (Topics) AccessoryCommand(category, uuid string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, category, uuid)
}

// AccessoryCommands returns the wildcard pattern matching every command topic.
//
// Example: vesync/command/+/+
func (Topics) AccessoryCommands() string {
	return fmt.Sprintf("%s/command/+/+", TopicPrefix)
}

// AccessoryAck returns the topic for command acknowledgements.
//
// Example: vesync/ack/outlet/5f8a1c2e-...
func (Topics) AccessoryAck(category, uuid string) string {
	return fmt.Sprintf("%s/ack/%s/%s", TopicPrefix, category, uuid)
}

// AccessoryEvent returns the topic for accessory lifecycle events.
// Event is one of "added", "updated", "removed".
//
// Example: vesync/accessory/added/5f8a1c2e-...
func (Topics) AccessoryEvent(event, uuid string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixAccessory, event, uuid)
}

// SystemStatus returns the topic for bridge online/offline status.
//
// Example: vesync/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// SystemHealth returns the topic for periodic bridge health reports.
//
// Example: vesync/system/health
func (Topics) SystemHealth() string {
	return TopicPrefixSystem + "/health"
}
