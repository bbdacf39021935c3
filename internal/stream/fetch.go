package stream

import (
	"context"
	"errors"
	"io"

	"serverhub/pkg/sdk"
)

// FetchSnapshot connects once and returns the first well-formed roster.
// Malformed payloads are skipped. It returns io.ErrUnexpectedEOF when the
// stream ends without one.
func FetchSnapshot(ctx context.Context, client *sdk.Client) ([]sdk.ServerInstance, error) {
	st, err := client.OpenStatusStream(ctx)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	stop := context.AfterFunc(ctx, func() { st.Close() })
	defer stop()

	for {
		ev, ok, err := st.Next()
		if !ok {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if err == nil {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}
		servers, _, err := Decode(ev.Data)
		if errors.Is(err, ErrMalformedSnapshot) {
			continue
		}
		return servers, err
	}
}
