// Package bootstrap runs a service through a fixed lifecycle: validate
// config, initialize logging, run preflight checks, start components in
// registration order, print the startup banner, wait for a shutdown
// signal, then stop components in reverse order.
//
//	app, err := bootstrap.NewApp(&cfg)
//	if err != nil {
//	    return err
//	}
//	app.Preflight(engine.Check)
//	app.RegisterComponent(serverComponent)
//	return app.Run(ctx)
package bootstrap
