// Package main is the tecken container entrypoint: it waits for service
// dependencies to come up and hands control to the requested run mode.
package main

func main() {
	Execute()
}
