package main

import "github.com/openshift-hyperfleet/kartograph-sub002/cmd"

func main() {
	cmd.Execute()
}
