package publisher

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mjasion/balena-home/heatexchanger/pkg/types"
)

// MessageType tags every published reading message
const MessageType = "temperature_message"

// TimestampLayout is ISO-8601 with millisecond precision
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// ErrInsufficientReadings is returned when T1..T4 are not all present
var ErrInsufficientReadings = errors.New("insufficient temperature data to publish")

var temperatureKeys = [4]string{"T1", "T2", "T3", "T4"}

// Data is the message payload
type Data struct {
	Temp1      float64  `json:"temp1"`
	Temp2      float64  `json:"temp2"`
	Temp3      float64  `json:"temp3"`
	Temp4      float64  `json:"temp4"`
	Efficiency *float64 `json:"efficiency,omitempty"`
	Timestamp  string   `json:"timestamp"`
}

// Message is the subscriber-facing envelope
type Message struct {
	Type string    `json:"type"`
	Data Data      `json:"data"`
	Time time.Time `json:"-"`
}

// NewMessage builds a message from a cycle's reading set
func NewMessage(readings types.ReadingSet, now time.Time) (Message, error) {
	var temps [4]float64
	for i, key := range temperatureKeys {
		v, ok := readings[key]
		if !ok {
			return Message{}, fmt.Errorf("%w: missing %s", ErrInsufficientReadings, key)
		}
		temps[i] = v
	}

	msg := Message{
		Type: MessageType,
		Data: Data{
			Temp1:     temps[0],
			Temp2:     temps[1],
			Temp3:     temps[2],
			Temp4:     temps[3],
			Timestamp: now.UTC().Format(TimestampLayout),
		},
		Time: now,
	}
	if eff, ok := readings.Efficiency(); ok {
		msg.Data.Efficiency = &eff
	}
	return msg, nil
}

// Marshal encodes the message as JSON
func (m Message) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// Readings converts the message back into a reading set keyed T1..T4
func (m Message) Readings() types.ReadingSet {
	rs := types.ReadingSet{
		"T1": m.Data.Temp1,
		"T2": m.Data.Temp2,
		"T3": m.Data.Temp3,
		"T4": m.Data.Temp4,
	}
	if m.Data.Efficiency != nil {
		rs[types.EfficiencyKey] = *m.Data.Efficiency
	}
	return rs
}
