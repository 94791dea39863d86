package main

import "kwak/server"

func main() {
	server.Main()
}
