package mqttadapter

import "encoding/json"

func decodeJSON(raw []byte, out any) error {
	return json.Unmarshal(raw, out)
}
