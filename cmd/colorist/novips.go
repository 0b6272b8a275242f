//go:build !vips

package main

import (
	"errors"

	"github.com/Skryldev/colorist/config"
	"github.com/Skryldev/colorist/core"
)

func vipsIdentifier(config.Config) (core.Identifier, func(), error) {
	return nil, nil, errors.New(`identifier "vips" needs a binary built with -tags vips`)
}
