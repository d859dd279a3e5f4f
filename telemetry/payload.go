package telemetry

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ardnew/softi2c/command"
)

// Topics builds the publisher's topic names.
//
//	softi2c/myi2cdev/result/read-temperature
//	softi2c/myi2cdev/status
type Topics struct {
	Prefix string
	Device string
}

// Result returns the topic for results of kind.
func (t Topics) Result(kind command.Kind) string {
	return fmt.Sprintf("%s/%s/result/%s", t.Prefix, t.device(), kind)
}

// Status returns the retained online/offline status topic.
func (t Topics) Status() string {
	return fmt.Sprintf("%s/%s/status", t.Prefix, t.device())
}

func (t Topics) device() string {
	if t.Device == "" {
		return "device"
	}
	return t.Device
}

// Result is the JSON body published for one command.
type Result struct {
	Command   string `json:"command"`
	Kind      string `json:"kind"`
	Status    string `json:"status"`
	Value     uint8  `json:"value"`
	Data      string `json:"data,omitempty"` // hex
	Error     string `json:"error,omitempty"`
	ElapsedUS int64  `json:"elapsed_us"`
	Timestamp string `json:"timestamp"`
}

// ResultPayload encodes r as JSON stamped with now.
func ResultPayload(r command.Result, now time.Time) ([]byte, error) {
	body := Result{
		Command:   r.Command.String(),
		Kind:      r.Command.Kind.String(),
		Status:    r.Status().String(),
		ElapsedUS: r.Elapsed.Microseconds(),
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
	if r.Err != nil {
		body.Error = r.Err.Error()
	} else {
		body.Value = r.Value
		if len(r.Data) > 0 {
			body.Data = hex.EncodeToString(r.Data)
		}
	}
	return json.Marshal(body)
}

func statusPayload(status, clientID string, now time.Time) string {
	return fmt.Sprintf(`{"status":%q,"client_id":%q,"timestamp":%q}`,
		status, clientID, now.UTC().Format(time.RFC3339))
}
