// Package cli provides the interactive authpipe demo client.
//
// It wires configuration, the token store, the refresh coordinator, the
// authenticated HTTP client and the session service, then runs a small REPL:
//
//	login              prompt for credentials and log in
//	get <path>         GET a path and print the JSON body
//	burst <n> <path>…  fire n concurrent GETs over the given paths
//	stats              print refresh counters and Prometheus metrics
//	logout             log out
//	exit | quit        leave the program
//
// burst is the interesting one: with an expired access token every request
// gets a 401, yet only one refresh call reaches the server.
package cli
