package ports

import "context"

type Connectivity interface {
	Online(ctx context.Context) bool
}

// StaticConnectivity reports a fixed state, used for --offline.
type StaticConnectivity bool

func (c StaticConnectivity) Online(context.Context) bool {
	return bool(c)
}
