package validation

import (
	"encoding/base64"
	"errors"
	"strings"
)

// ErrInvalidBase64 is returned when an upload payload cannot be decoded.
var ErrInvalidBase64 = errors.New("invalid base64 video data")

// DecodeBase64 decodes an upload payload, accepting an optional data URL
// prefix ("data:video/mp4;base64,").
func DecodeBase64(payload string) ([]byte, error) {
	if i := strings.IndexByte(payload, ','); i >= 0 && strings.HasPrefix(payload, "data:") {
		payload = payload[i+1:]
	}
	payload = strings.TrimSpace(payload)

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(payload)
		if err != nil {
			return nil, ErrInvalidBase64
		}
	}
	return data, nil
}
