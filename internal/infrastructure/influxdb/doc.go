// Package influxdb exports simulated energy readings to InfluxDB v2.
//
// Every tick reading becomes one point:
//
//	energy,device_id=1,device_name=Fridge power_watts=125,energy_kwh=0.0021,total_kwh=0.0042 <sample time>
//
// Export is optional and off by default. Writes are non-blocking and
// batched according to batch_size and flush_interval; asynchronous
// failures are delivered to the SetOnError callback.
//
// Usage:
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	sim.OnTick(client.WriteReadings)
package influxdb
