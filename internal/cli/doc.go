// Package cli builds the orbit-server command line on spf13/cobra.
//
// Configuration is read from the environment by the config package; flags
// set on the command line override individual values before validation.
//
// Commands:
//
//	orbit-server [serve]            start the HTTP server
//	orbit-server version            print build metadata
//	orbit-server templates list     list workflow templates
//	orbit-server templates validate parse a templates directory
package cli
