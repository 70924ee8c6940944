// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/tfrun/tfrun/cmd/tfrun"

func main() {
	cmd.Execute()
}
