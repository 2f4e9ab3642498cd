package config

import (
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ReloadFunc receives the reloaded configuration, or the error that
// prevented it from loading. The previous configuration stays in effect
// on error.
type ReloadFunc func(cfg *Config, err error)

// Watch reloads the configuration whenever the config file in use changes.
// It is a no-op when no config file was read.
func Watch(fn ReloadFunc) {
	if viper.ConfigFileUsed() == "" {
		return
	}
	viper.OnConfigChange(func(e fsnotify.Event) {
		handleChange(e, fn)
	})
	viper.WatchConfig()
}

// handleChange reloads on writes and creates; editors that replace the
// file produce a create.
func handleChange(e fsnotify.Event, fn ReloadFunc) {
	if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
		return
	}
	fn(Load())
}
