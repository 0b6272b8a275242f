//go:build vips

package main

import (
	"github.com/Skryldev/colorist/adapters/vips"
	"github.com/Skryldev/colorist/config"
	"github.com/Skryldev/colorist/core"
)

func vipsIdentifier(cfg config.Config) (core.Identifier, func(), error) {
	id := vips.NewIdentifier(vips.Config{MaxWorkers: cfg.WorkerCount})
	return id, id.Shutdown, nil
}
