//go:build !fastembed

package embed

import "context"

func NewFastEmbed(context.Context, *Options) (Embedder, error) {
	return nil, ErrFastEmbedMissing
}
