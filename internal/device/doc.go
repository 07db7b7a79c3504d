// Package device manages the registry of machines Fleetwake can wake
// and shut down: their MAC and IP addresses, broadcast address for
// magic packets, and presence state maintained by the poller.
package device
