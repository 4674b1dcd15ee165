// Package autoload configures the global logger from LOG_* variables when
// imported.
package autoload

import (
	configx "github.com/tanpawarit/money-tracker/pkg/config"
	logx "github.com/tanpawarit/money-tracker/pkg/logger"
)

func init() {
	logx.Init(*configx.MustNew[logx.Config]("LOG"))
}
