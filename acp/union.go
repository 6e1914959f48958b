package acp

import "encoding/json"

// marshalTagged serializes v and injects the discriminator field used by the
// protocol's tagged unions, e.g. {"type": "text", ...}.
func marshalTagged(tagKey, tagValue string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = make(map[string]json.RawMessage, 1)
	}
	tag, err := json.Marshal(tagValue)
	if err != nil {
		return nil, err
	}
	fields[tagKey] = tag
	return json.Marshal(fields)
}

// unionTag extracts the discriminator value from a tagged union payload.
func unionTag(data []byte, tagKey string) (string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return "", err
	}
	raw, ok := fields[tagKey]
	if !ok {
		return "", nil
	}
	var tag string
	if err := json.Unmarshal(raw, &tag); err != nil {
		return "", err
	}
	return tag, nil
}
