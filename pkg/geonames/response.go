package geonames

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strings"

	"github.com/spf13/cast"
)

const (
	noMessage       = "no message"
	maxErrorSnippet = 512
)

// Payload is a decoded success response. Fields holds every top-level key,
// including "geonames", for endpoints that return extra data such as
// totalResultsCount.
type Payload struct {
	Geonames []Record
	Fields   map[string]any
}

// envelope is the status block geonames embeds in a 200 response on failure.
type envelope struct {
	code    int
	message string
}

// interpret turns a transport result into a payload or a typed error.
func interpret(statusCode int, body []byte) (*Payload, error) {
	if statusCode != http.StatusOK {
		return nil, &TransportError{StatusCode: statusCode, Body: snippet(body)}
	}

	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, &MalformedResponseError{Reason: "invalid json", Err: err}
	}

	if env, ok := probeEnvelope(decoded); ok {
		kind, err := Classify(env.code)
		if err != nil {
			var unclassified *UnclassifiedCodeError
			if errors.As(err, &unclassified) {
				unclassified.Message = env.message
			}
			return nil, err
		}
		return nil, &ServiceError{Kind: kind, Message: env.message}
	}

	return successPayload(decoded)
}

// probeEnvelope reports whether decoded has the shape
// {"status": {"value": <integer>, "message": <string>}}. Any other shape is
// not an envelope.
func probeEnvelope(decoded any) (envelope, bool) {
	obj, ok := decoded.(map[string]any)
	if !ok {
		return envelope{}, false
	}
	status, ok := obj["status"].(map[string]any)
	if !ok {
		return envelope{}, false
	}
	raw, ok := status["value"]
	if !ok {
		return envelope{}, false
	}
	value, ok := scalar(raw)
	if !ok {
		return envelope{}, false
	}
	f, err := cast.ToFloat64E(value)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return envelope{}, false
	}

	env := envelope{code: int(f), message: noMessage}
	switch msg := status["message"].(type) {
	case nil:
	case string:
		env.message = msg
	default:
		env.message = cast.ToString(msg)
	}
	return env, true
}

func successPayload(decoded any) (*Payload, error) {
	obj, ok := decoded.(map[string]any)
	if !ok {
		return nil, &MalformedResponseError{Reason: "unexpected response: not an object"}
	}
	raw, ok := obj["geonames"]
	if !ok {
		return nil, &MalformedResponseError{Reason: "unexpected response: neither geonames nor status present"}
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, &MalformedResponseError{Reason: "unexpected response: geonames is not a list"}
	}
	records := make([]Record, 0, len(items))
	for _, item := range items {
		rec, ok := item.(map[string]any)
		if !ok {
			return nil, &MalformedResponseError{Reason: "unexpected response: geonames entry is not an object"}
		}
		records = append(records, Record(rec))
	}
	return &Payload{Geonames: records, Fields: obj}, nil
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorSnippet {
		s = s[:maxErrorSnippet]
	}
	return strings.ToValidUTF8(s, "")
}
