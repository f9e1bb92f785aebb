// Package json wraps the json-iterator library, standard library compatible.
package json

import (
	jsoniter "github.com/json-iterator/go"

	"github.com/keenai/agent-chat/internal/pkg/utils/errors"
)

// nolint: gochecknoglobals
var json = jsoniter.ConfigCompatibleWithStandardLibrary

func Encode(v any, pretty bool) ([]byte, error) {
	var data []byte
	var err error
	if pretty {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return nil, errors.PrefixError(err, "cannot encode JSON")
	}
	return data, nil
}

func EncodeString(v any, pretty bool) (string, error) {
	data, err := Encode(v, pretty)
	return string(data), err
}

func MustEncode(v any, pretty bool) []byte {
	data, err := Encode(v, pretty)
	if err != nil {
		panic(err)
	}
	return data
}

func MustEncodeString(v any, pretty bool) string {
	data, err := EncodeString(v, pretty)
	if err != nil {
		panic(err)
	}
	return data
}

func Decode(data []byte, target any) error {
	if err := json.Unmarshal(data, target); err != nil {
		return errors.PrefixError(err, "cannot decode JSON")
	}
	return nil
}

func DecodeString(data string, target any) error {
	return Decode([]byte(data), target)
}

func MustDecode(data []byte, target any) {
	if err := Decode(data, target); err != nil {
		panic(err)
	}
}
