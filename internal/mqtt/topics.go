// internal/mqtt/topics.go
package mqtt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/tamzrod/tc-ioc/internal/pv"
)

const (
	setSuffix   = "/set"
	statusTopic = "status"

	payloadOnline  = "online"
	payloadOffline = "offline"
)

// Topic maps a PV name onto the topic tree: ':' separators become levels.
// "temp:t1:temperature" under "tcioc" is "tcioc/temp/t1/temperature".
func Topic(prefix, pvName string) string {
	return prefix + "/" + strings.ReplaceAll(pvName, ":", "/")
}

// SetTopic is the topic a writable PV accepts writes on.
func SetTopic(prefix, pvName string) string {
	return Topic(prefix, pvName) + setSuffix
}

// StatusTopic carries the online/offline state of the gateway (retained, LWT).
func StatusTopic(prefix string) string {
	return prefix + "/" + statusTopic
}

// statePayload is published for every PV update.
type statePayload struct {
	Value float64   `json:"value"`
	TS    time.Time `json:"ts"`
}

func encodeState(u pv.Update) ([]byte, error) {
	return json.Marshal(statePayload{Value: u.Value, TS: u.Timestamp})
}

// setPayload is the JSON form of a write request.
type setPayload struct {
	Value *float64 `json:"value"`
}

// ParseSetPayload accepts {"value": x} or a bare number.
func ParseSetPayload(b []byte) (float64, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return 0, errors.New("mqtt: empty payload")
	}

	var v float64
	if b[0] == '{' {
		var p setPayload
		if err := json.Unmarshal(b, &p); err != nil {
			return 0, fmt.Errorf("mqtt: bad payload: %w", err)
		}
		if p.Value == nil {
			return 0, errors.New("mqtt: payload has no value")
		}
		v = *p.Value
	} else {
		f, err := strconv.ParseFloat(string(b), 64)
		if err != nil {
			return 0, fmt.Errorf("mqtt: bad payload: %w", err)
		}
		v = f
	}

	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.New("mqtt: value must be finite")
	}
	return v, nil
}
