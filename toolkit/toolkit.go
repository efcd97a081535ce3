// Package toolkit ships small ready-made tools a conversation can register
// out of the box: desktop notifications and host facts such as the local
// clock. Each tool exposes its methods through the tool capability interface
// and reports session state for the tool-states context block.
package toolkit

import (
	"encoding/json"
	"fmt"
)

// decodeArgs re-encodes the generic argument map into a typed payload struct,
// the same shape providers decode their raw call JSON into.
func decodeArgs(args map[string]interface{}, payload any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("failed to encode arguments: %w", err)
	}
	if err := json.Unmarshal(raw, payload); err != nil {
		return fmt.Errorf("failed to decode arguments: %w", err)
	}
	return nil
}
