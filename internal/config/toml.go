package config

import (
	"errors"
	"fmt"
	"io"

	"github.com/pelletier/go-toml/v2"
)

func decodeTOML(r io.Reader, c *Config) error {
	dec := toml.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return fmt.Errorf("config: line %d column %d: %w", row, col, err)
		}
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func encodeTOML(c *Config) ([]byte, error) {
	b, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return b, nil
}
