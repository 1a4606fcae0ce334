package ledger

import "encoding/json"

func decodeJSON(s string, v interface{}) error {
	return json.Unmarshal([]byte(s), v)
}
