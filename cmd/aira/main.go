package main

import "github.com/aira-metrics/dashboard/internal/cmd"

func main() {
	cmd.Execute()
}
