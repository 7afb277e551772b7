package main

import (
	"github.com/nguyengg/xy7z/internal/cmd"
)

func main() {
	_, err := cmd.NewParser().Parse()
	exit(err)
}
