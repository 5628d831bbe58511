package sources

import (
	"fmt"

	"github.com/okian/pausemap/internal/config"
)

// New builds the named source.
func New(name string, cfg *config.Config, deps Deps) (Source, error) {
	switch name {
	case NameGDELT:
		return NewGDELT(cfg, deps), nil
	case NameOWID:
		return NewOWID(cfg, deps), nil
	case NameWorldBank:
		return NewWorldBank(cfg, deps), nil
	default:
		return nil, fmt.Errorf("%w: %q (want one of %v)", ErrUnknownSource, name, Names)
	}
}
