package client

import (
	"encoding/json"
	"fmt"

	"github.com/yndnr/gedis-go/internal/core/domain"
)

// decodeReply turns a raw reply into a result value.
//
// Strings holding a JSON object or array are decoded; a failure envelope
// is returned separately. Other strings, integers and nil pass through.
// Arrays are decoded element by element.
func decodeReply(raw any) (any, *domain.ActorResult, error) {
	if s, ok := raw.(string); ok {
		if res, failed := domain.ParseFailure([]byte(s)); failed {
			return nil, &res, nil
		}
	}
	v, err := decodeValue(raw)
	return v, nil, err
}

func decodeValue(raw any) (any, error) {
	switch t := raw.(type) {
	case nil, int64:
		return t, nil
	case string:
		return decodeString(t), nil
	case error:
		return t.Error(), nil
	case []any:
		out := make([]any, len(t))
		for idx, item := range t {
			v, err := decodeValue(item)
			if err != nil {
				return nil, err
			}
			out[idx] = v
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unexpected reply type %T", raw)
	}
}

func decodeString(s string) any {
	if len(s) == 0 || (s[0] != '{' && s[0] != '[') || !json.Valid([]byte(s)) {
		return s
	}
	v, err := domain.DecodeJSON([]byte(s))
	if err != nil {
		return s
	}
	return v
}

// encodePayload builds the single JSON call payload [args, kwargs].
func encodePayload(args []any, kwargs map[string]any) (string, error) {
	if args == nil {
		args = []any{}
	}
	if kwargs == nil {
		kwargs = map[string]any{}
	}
	b, err := json.Marshal([]any{args, kwargs})
	if err != nil {
		return "", domain.BadRequestf("encode call arguments: %v", err)
	}
	return string(b), nil
}
