package source

import (
	"context"

	"github.com/nerrad567/gray-logic-busdecode/internal/knx"
)

// readAll drains src and returns every byte it produced before io.EOF.
func readAll(ctx context.Context, src Source) ([]knx.TimestampedByte, error) {
	var out []knx.TimestampedByte
	for {
		b, err := src.Next(ctx)
		if err != nil {
			if isEOF(err) {
				return out, nil
			}
			return out, err
		}
		out = append(out, b)
	}
}
