package implementation

import "encoding/json"

func toJSONB(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
