package server

import (
	"encoding/json"
	"net/http"

	"github.com/mitchellh/mapstructure"
)

// envelope is the wire shape of every response: success carries a payload,
// failure carries a message.
type envelope struct {
	Success bool   `json:"success"`
	Payload any    `json:"payload,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeSuccess(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Payload: payload})
}

func writeFailure(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Message: message})
}

// decode maps a parsed JSON body onto a typed request. Unknown fields are
// tolerated; type mismatches are not.
func decode(body map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  out,
		TagName: "mapstructure",
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(body); err != nil {
		return &DecodeError{Cause: err}
	}
	return nil
}
