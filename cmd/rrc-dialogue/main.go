package main

import "tarun-kavipurapu/rrc-dialogue/pkg/logger"

func main() {
	defer logger.Sync()
	Execute()
}
