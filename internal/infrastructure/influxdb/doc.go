// Package influxdb writes bus traffic metrics to InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched point writing and health monitoring.
//
// # Measurements
//
//	knx_telegram  tags: direction, command, crc, group   fields: data_len, events, raw_length
//	knx_control   tags: direction, label                 fields: count
//	knx_session   tags: direction                        fields: session counters
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteTelegram(influxdb.TelegramMetric{Direction: "rx", Command: "VAL WRITE", CRCValid: true})
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
//
// # Error Handling
//
// Writes are non-blocking and batch errors are delivered via SetOnError.
// Connection and health check errors are returned directly.
package influxdb
