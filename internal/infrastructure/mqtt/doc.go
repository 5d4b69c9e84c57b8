// Package mqtt publishes decoded bus traffic to an MQTT broker.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - JSON publishing with QoS guarantees
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Topics
//
//	{prefix}/telegram/{direction}/{escaped destination}   decoded telegrams
//	{prefix}/control/{direction}                           short control codes
//	{prefix}/stats/{direction}                             retained session counters
//	{prefix}/system/status                                 retained online/offline
//
// Destinations such as "1/2/3" are escaped so the slash does not create
// extra topic levels.
//
// # Security Considerations
//
//   - Enable TLS for brokers outside the local host (cfg.Broker.TLS=true)
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topic := client.Topics().Control("tx")
//	err = client.PublishJSON(topic, msg)
package mqtt
