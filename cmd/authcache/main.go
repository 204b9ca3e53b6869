// Command authcache runs the authentication server and its database
// migrations.
//
//	authcache serve            start the HTTP server
//	authcache migrate          apply pending migrations
//	authcache migrate rollback revert the last migration group
//
// Configuration is read from AUTHCACHE_* environment variables; see
// internal/serverconfig.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
