package influxdb

import (
	"context"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/homewatt/homewatt-core/internal/event"
)

// measurementName is the InfluxDB measurement raw points land under.
const measurementName = "device_measurements"

// WriteMeasurement records one raw measurement point at its original
// timestamp. The write is enqueued into the batching write API and sent
// asynchronously; batch failures surface through the SetOnError callback.
//
// Satisfies the aggregator's sink interface.
func (c *Client) WriteMeasurement(_ context.Context, m event.Measurement) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	point := write.NewPoint(
		measurementName,
		map[string]string{
			"device_id": m.DeviceID.String(),
		},
		map[string]interface{}{
			"value": m.MeasurementValue,
		},
		m.Timestamp,
	)

	c.writeAPI.WritePoint(point)
	return nil
}
