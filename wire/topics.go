package wire

import "fmt"

// Chat and location updates travel on distinct topics derived from one
// channel domain identifier, so clients sharing a domain find each other.

// ChatTopic returns the chat message topic for a channel domain.
func ChatTopic(channelDomain string) string {
	return fmt.Sprintf("/arc-%s/1/chat/json", channelDomain)
}

// LocationTopic returns the location update topic for a channel domain.
func LocationTopic(channelDomain string) string {
	return fmt.Sprintf("/arc-%s/1/location/json", channelDomain)
}
