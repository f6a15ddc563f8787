package main

import (
	"os"

	"horse.fit/firstprint/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
