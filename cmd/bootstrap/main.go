package main

import "github.com/aqasim81/store-bootstrap/internal/cli"

func main() {
	cli.Execute()
}
