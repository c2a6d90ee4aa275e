package main

import "github.com/lessonworks/sage/cmd"

func main() {
	cmd.Execute()
}
