package main

import "github.com/xyangyan/CsdBERT/cmd"

func main() {
	cmd.Execute()
}
