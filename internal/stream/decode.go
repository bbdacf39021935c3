package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"serverhub/pkg/sdk"
)

var ErrMalformedSnapshot = errors.New("malformed roster snapshot")

// Decode parses one status event payload into a roster. The gateway
// sometimes repeats the "data:" field name inside the payload; it is
// stripped before parsing.
//
// A payload that is not a JSON array is an error. Entries without a
// server_id, and repeats of an id already seen, are left out of the roster
// and described in dropped; the rest of the payload still applies.
func Decode(data string) (servers []sdk.ServerInstance, dropped []string, err error) {
	payload := strings.TrimSpace(data)
	if rest, ok := strings.CutPrefix(payload, "data:"); ok {
		payload = strings.TrimSpace(rest)
	}

	var entries []sdk.ServerInstance
	if err := json.Unmarshal([]byte(payload), &entries); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	if entries == nil {
		return nil, nil, fmt.Errorf("%w: payload is not an array", ErrMalformedSnapshot)
	}

	servers = make([]sdk.ServerInstance, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for i, s := range entries {
		if s.ID == "" {
			dropped = append(dropped, fmt.Sprintf("entry %d has no server_id", i))
			continue
		}
		if _, dup := seen[s.ID]; dup {
			dropped = append(dropped, fmt.Sprintf("entry %d repeats server_id %q", i, s.ID))
			continue
		}
		seen[s.ID] = struct{}{}
		servers = append(servers, s)
	}
	return servers, dropped, nil
}
