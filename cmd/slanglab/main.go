package main

import (
	"os"

	"horse.fit/slanglab/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
