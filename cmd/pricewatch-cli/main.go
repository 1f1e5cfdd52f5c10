package main

import (
	"github.com/joho/godotenv"

	"pricewatch-backend/cmd/pricewatch-cli/cmd"
)

func main() {
	godotenv.Load()
	cmd.Execute()
}
