// Package common holds the ambient pieces shared by every other package of
// objstore, currently the logging setup.
//
// All packages log through the dragonboat logger facade
// (github.com/lni/dragonboat/v4/logger), e.g.
//
//	var log = logger.GetLogger("datastore")
//
// InitLoggers replaces the default dragonboat backend with a zap console
// logger and sets the level of every logger named in Loggers. Until
// InitLoggers is called the dragonboat default backend is used, which is
// fine for tests.
package common
