// Package discovery advertises query servers on the local network and finds
// them, using multicast DNS (hashicorp/mdns).
//
// A server is announced as an instance of the _dql._tcp service. The TXT
// record lists the served virtual databases as "db=<name>" entries and the
// transport as "transport=<name>".
package discovery
