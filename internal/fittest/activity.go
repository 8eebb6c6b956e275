package fittest

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/tormoder/fit"
)

// ActivityStart is the start time of the activity written by Activity.
var ActivityStart = time.Date(2026, 2, 26, 23, 0, 0, 0, time.UTC)

// Activity encodes a short activity with the tormoder/fit SDK: a timer
// start and stop event around one record sample.
func Activity() ([]byte, error) {
	header := fit.NewHeader(fit.V20, true)
	file, err := fit.NewFile(fit.FileTypeActivity, header)
	if err != nil {
		return nil, err
	}
	activity, err := file.Activity()
	if err != nil {
		return nil, err
	}

	start := fit.NewEventMsg()
	start.Timestamp = ActivityStart
	start.Event = fit.EventTimer
	start.EventType = fit.EventTypeStart
	activity.Events = append(activity.Events, start)

	record := fit.NewRecordMsg()
	record.Timestamp = ActivityStart.Add(30 * time.Second)
	record.HeartRate = 135
	record.Power = 245
	record.Cadence = 92
	activity.Records = append(activity.Records, record)

	stop := fit.NewEventMsg()
	stop.Timestamp = ActivityStart.Add(10 * time.Minute)
	stop.Event = fit.EventTimer
	stop.EventType = fit.EventTypeStop
	activity.Events = append(activity.Events, stop)

	var buf bytes.Buffer
	if err := fit.Encode(&buf, file, binary.LittleEndian); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
