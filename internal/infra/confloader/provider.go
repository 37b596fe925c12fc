package confloader

import (
	"errors"

	"github.com/knadh/koanf/maps"
)

// mapProvider is a koanf.Provider over dotted keys such as
// "server.redis.addr".
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("confloader: override map has no byte form")
}

func (m mapProvider) Read() (map[string]any, error) {
	return maps.Unflatten(m, "."), nil
}
