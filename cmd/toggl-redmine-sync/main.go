package main

import "toggl-redmine-sync/internal/cli"

func main() {
	cli.Execute()
}
