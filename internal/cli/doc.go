// Package cli implements the vmw command-line interface.
//
// Every command builds the same object graph from the loaded config (see
// openApp): a host registry, an SSH runner with an optional connection
// pool, the telemetry cache, the fleet monitor and the alert engine. One
// shot commands tear it down on exit; `vmw serve` keeps it alive behind the
// HTTP API.
//
// # Command Structure
//
//	vmw serve                      - Run the HTTP API
//	vmw stats <vm>                 - Host CPU, RAM, disk and uptime
//	vmw containers|images|stopped  - Docker listings
//	vmw container-stats <vm> [c]   - Per-container resource usage
//	vmw start|stop|logs <vm> <c>   - Container lifecycle and logs
//	vmw test <vm>                  - Reachability check
//	vmw validate                   - Check an unsaved credential
//	vmw alerts [vm]                - Evaluate thresholds (--send to notify)
//	vmw host [list|add|remove]     - Manage the host registry
//	vmw init                       - Write a commented .vmwatch.yaml
//
// # Output
//
// Human output goes through the ui package. With --json every command
// writes a JSONEnvelope instead; a failed result still carries its payload
// in the envelope's data field and exits non-zero.
package cli
