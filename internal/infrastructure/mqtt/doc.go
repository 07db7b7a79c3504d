// Package mqtt publishes Fleetwake events to an MQTT broker.
//
// The channel is optional and publish-only: presence transitions,
// wake/shutdown commands, and service status go out so home-lab
// automations (Home Assistant, Node-RED) can react to them. Nothing is
// subscribed back; the HTTP API remains the only control surface.
//
// # Topics
//
//	fleetwake/system/status              retained service status (with LWT)
//	fleetwake/device/<id>/presence       retained online/offline state
//	fleetwake/device/<id>/command        wake/shutdown events
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.PublishPresence(device.ID, true)
package mqtt
