// Command framelift is the operator CLI for the framelift job registry and
// enhancement pipeline. It talks to the same SQLite database as frameliftd;
// WAL mode keeps concurrent access safe.
package main
