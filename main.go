package main

import (
	"github.com/anoixa/image-scraper/cmd"
)

func main() {
	cmd.Execute()
}
