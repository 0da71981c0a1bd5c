package main

import "github.com/qrave1/MentorCall/cmd"

func main() {
	cmd.Execute()
}
