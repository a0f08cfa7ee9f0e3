package main

import "github.com/frahmantamala/rentpay/cmd"

func main() {
	cmd.Execute()
}
