// Package config holds the explicit configuration handed to every hpcmaker
// component: the settings file, env-driven timeouts, the entity identity
// and the on-disk state layout derived from it.
package config
