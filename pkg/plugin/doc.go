// Package plugin is the authoring surface for scanhost plugins.
//
// A plugin is a pointer type embedding Base:
//
//	type Finder struct {
//		plugin.Base
//	}
//
//	func New() *Finder { return &Finder{Base: plugin.NewBase("finder")} }
//
// Base supplies the defaults every plugin inherits. Required methods
// (Configure, Options, Run, Dependencies, LongDescription) fail with a
// *ConfigurationError naming the plugin until the plugin overrides them.
// HandleNetworkError logs and propagates.
//
// Once bound to an Env (Host.Register does this), Base gives the plugin a
// network client wrapped in a netproxy.Proxy that calls the plugin's own
// HandleNetworkError, a task tracker scoped to the plugin, the shared
// result store and the reporter.
package plugin
